package services

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"flat-stats/models"
)

func roomStat(room string) models.GroupStat {
	return models.GroupStat{Dims: []models.Dimension{models.DimRoomType}, Key: models.GroupKey{room}, RoomType: room}
}

func complexStat(title string) models.GroupStat {
	return models.GroupStat{Dims: []models.Dimension{models.DimComplex}, Key: models.GroupKey{title}, ComplexTitle: title}
}

func pairStat(title, room string) models.GroupStat {
	return models.GroupStat{
		Dims:         []models.Dimension{models.DimComplex, models.DimRoomType},
		Key:          models.GroupKey{title, room},
		ComplexTitle: title,
		RoomType:     room,
	}
}

func keysOf(stats []models.GroupStat) []models.GroupKey {
	out := make([]models.GroupKey, len(stats))
	for i, s := range stats {
		out[i] = s.Key
	}
	return out
}

func TestOrderRoomTypesStudioFirstNumeric(t *testing.T) {
	o := NewOrderer(language.Russian)
	in := []models.GroupStat{roomStat("3"), roomStat("10"), roomStat("Студия"), roomStat("1"), roomStat("2")}

	got := o.Order(in)

	assert.Equal(t, []models.GroupKey{{"Студия"}, {"1"}, {"2"}, {"3"}, {"10"}}, keysOf(got))
	assert.Equal(t, "Студия", got[0].RoomType, "studio label must be restored")
	assert.Equal(t, "3", in[0].RoomType, "input must not be reordered")
}

func TestOrderComplexThenRoom(t *testing.T) {
	o := NewOrderer(language.Russian)
	in := []models.GroupStat{
		pairStat("Северный", "2"),
		pairStat("Аквилон Парк", "2"),
		pairStat("Аквилон Парк", "Студия"),
		pairStat("Северный", "1"),
	}

	got := o.Order(in)

	assert.Equal(t, []models.GroupKey{
		{"Аквилон Парк", "Студия"},
		{"Аквилон Парк", "2"},
		{"Северный", "1"},
		{"Северный", "2"},
	}, keysOf(got))
}

func TestOrderComplexOnly(t *testing.T) {
	o := NewOrderer(language.Russian)
	got := o.Order([]models.GroupStat{complexStat("Beta"), complexStat("alpha"), complexStat("Gamma")})
	assert.Equal(t, []models.GroupKey{{"alpha"}, {"Beta"}, {"Gamma"}}, keysOf(got))
}

func TestOrderIsIdempotent(t *testing.T) {
	o := NewOrderer(language.Russian)
	f := gofakeit.New(42)
	rooms := []string{"Студия", "1", "2", "3", "4", "5+", "10"}
	complexes := []string{"Аквилон", "Северный", "Green Park", "Лесной", "River"}

	for run := 0; run < 20; run++ {
		var in []models.GroupStat
		seen := map[models.GroupKey]bool{}
		for i := 0; i < 25; i++ {
			s := pairStat(f.RandomString(complexes), f.RandomString(rooms))
			if seen[s.Key] {
				continue
			}
			seen[s.Key] = true
			in = append(in, s)
		}

		once := o.Order(in)
		assert.Equal(t, keysOf(once), keysOf(o.Order(once)))
		assert.ElementsMatch(t, keysOf(in), keysOf(once))
	}
}

func TestSortRoomTypes(t *testing.T) {
	o := NewOrderer(language.Russian)
	labels := []string{"4", "Studio", "12", "1"}
	o.SortRoomTypes(labels)
	assert.Equal(t, []string{"Studio", "1", "4", "12"}, labels)
}

func TestIsStudio(t *testing.T) {
	assert.True(t, IsStudio("Студия"))
	assert.True(t, IsStudio(" studio "))
	assert.False(t, IsStudio("0"))
	assert.False(t, IsStudio("1"))
}
