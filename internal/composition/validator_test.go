package composition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/lingoloop/pkg/models"
)

func selection(known, review, fresh []string) models.WordSelection {
	all := append(append(append([]string{}, known...), review...), fresh...)
	return models.WordSelection{KnownWords: known, ReviewWords: review, NewWords: fresh, AllWords: all}
}

func TestValidateRoundTrip(t *testing.T) {
	sel := selection([]string{"el", "gato", "come"}, []string{"pescado"}, []string{"rápido", "hoy"})
	text := strings.Join(sel.AllWords, " ")

	res := Validate(text, sel, len(sel.AllWords))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 6, res.WordCount)
}

func TestValidateWordCountBounds(t *testing.T) {
	sel := selection(nil, nil, nil)
	tests := []struct {
		words int
		valid bool
	}{
		{6, false},
		{7, true},
		{10, true},
		{15, true},
		{16, false},
	}
	for _, tt := range tests {
		text := strings.TrimSpace(strings.Repeat("palabra ", tt.words))
		res := Validate(text, sel, 10)
		assert.Equal(t, tt.valid, res.Valid, "%d words", tt.words)
		if !tt.valid {
			assert.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], "word count")
		}
	}
}

func TestValidateMissingNewWords(t *testing.T) {
	sel := selection([]string{"casa"}, nil, []string{"Ventana", "puerta", "techo"})
	text := "La casa tiene una ventana grande y una PUERTA roja"

	res := Validate(text, sel, 10)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{`missing new word "techo"`}, res.Errors)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	sel := selection(nil, nil, []string{"sol", "luna"})
	res := Validate("nada", sel, 20)

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
}

func TestValidateDoesNotMutateSelection(t *testing.T) {
	sel := selection([]string{"a"}, []string{"b"}, []string{"C"})
	before := selection([]string{"a"}, []string{"b"}, []string{"C"})

	Validate("a b c", sel, 3)
	assert.Equal(t, before, sel)
}
