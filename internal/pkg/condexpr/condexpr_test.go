package condexpr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinreg-service/internal/pkg/exceptions"
)

func TestEval(t *testing.T) {
	testCases := []struct {
		name      string
		condition string
		vars      map[string]interface{}
		expected  bool
	}{
		{"greater than", "x > 5", map[string]interface{}{"x": 7}, true},
		{"greater than false", "x > 5", map[string]interface{}{"x": 3}, false},
		{"less or equal", "x <= 5", map[string]interface{}{"x": 5}, true},
		{"string equality", `x == "positive"`, map[string]interface{}{"x": "positive"}, true},
		{"inequality", `x != "positive"`, map[string]interface{}{"x": "negative"}, true},
		{"numeric equality across types", "x == 10", map[string]interface{}{"x": 10.0}, true},
		{"membership", "x in [1, 2, 3]", map[string]interface{}{"x": 2}, true},
		{"membership miss", "x in [1, 2, 3]", map[string]interface{}{"x": 9}, false},
		{"string membership", `x in ["a", "b"]`, map[string]interface{}{"x": "b"}, true},
		{"and", "x > 1 and x < 10", map[string]interface{}{"x": 5}, true},
		{"or", "x < 1 or x > 10", map[string]interface{}{"x": 20}, true},
		{"not", "not x > 5", map[string]interface{}{"x": 3}, true},
		{"parens", "not (x < 2 or x >= 10)", map[string]interface{}{"x": 5}, true},
		{"boolean literal", "x == true", map[string]interface{}{"x": true}, true},
		{"negative number", "x < -1", map[string]interface{}{"x": -3.5}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := Parse(tc.condition)
			require.NoError(t, err)
			result, err := expr.Eval(tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name      string
		condition string
	}{
		{"dangling operator", "x >"},
		{"unbalanced parens", "(x > 1"},
		{"unterminated string", `x == "abc`},
		{"trailing tokens", "x > 1 y"},
		{"empty", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.condition)
			require.Error(t, err)
			var parseErr *exceptions.ConditionParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestEvalMissingVariable(t *testing.T) {
	expr, err := Parse("x > 5")
	require.NoError(t, err)
	_, err = expr.Eval(map[string]interface{}{})
	assert.Error(t, err)
}
