package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/apperrors"
)

func TestValueDataConstructors(t *testing.T) {
	t.Run("score in range", func(t *testing.T) {
		v, err := NewScoreValue(0.72)
		require.NoError(t, err)
		assert.Equal(t, ValueTypeScore, v.Type)
		assert.InDelta(t, 0.72, v.Score, 1e-9)
	})

	t.Run("score out of range is rejected", func(t *testing.T) {
		_, err := NewScoreValue(1.2)
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewScoreValue(-0.1)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("empty labels are rejected", func(t *testing.T) {
		_, err := NewTagValue("")
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewRangeValue("")
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewTextValue("")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestValueDataJSON(t *testing.T) {
	t.Run("score marshals to a single-key object", func(t *testing.T) {
		v, err := NewScoreValue(0.72)
		require.NoError(t, err)

		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `{"score": 0.72}`, string(data))
	})

	t.Run("tag round trips", func(t *testing.T) {
		v, err := NewTagValue("frustrated")
		require.NoError(t, err)

		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `{"tag": "frustrated"}`, string(data))

		var back ValueData
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back)
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		var v ValueData
		err := json.Unmarshal([]byte(`{"mood": "happy"}`), &v)
		assert.ErrorContains(t, err, "unknown value type")
	})

	t.Run("multiple keys are rejected", func(t *testing.T) {
		var v ValueData
		err := json.Unmarshal([]byte(`{"score": 0.5, "tag": "x"}`), &v)
		assert.ErrorContains(t, err, "exactly one key")
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		var v ValueData
		err := json.Unmarshal([]byte(`{"score": 1.5}`), &v)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestValueTypeValid(t *testing.T) {
	assert.True(t, ValueTypeScore.Valid())
	assert.True(t, ValueTypeTag.Valid())
	assert.True(t, ValueTypeRange.Valid())
	assert.True(t, ValueTypeText.Valid())
	assert.False(t, ValueType("mood").Valid())
	assert.False(t, ValueType("").Valid())
}

func TestCorrectionKindValid(t *testing.T) {
	assert.True(t, CorrectionWrongValue.Valid())
	assert.True(t, CorrectionWrongInterpretation.Valid())
	assert.True(t, CorrectionNotApplicable.Valid())
	assert.True(t, CorrectionOther.Valid())
	assert.False(t, CorrectionKind("confused").Valid())
}
