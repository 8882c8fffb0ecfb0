package parser

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuldlabs/clob/internal/common"
)

func readAll(t *testing.T, input string, ignoreErrors bool) ([]Command, error) {
	t.Helper()
	r := NewReader(strings.NewReader(input), ignoreErrors, zerolog.Nop())
	var cmds []Command
	for {
		cmd, err := r.Next()
		if err == io.EOF {
			return cmds, nil
		}
		if err != nil {
			return cmds, err
		}
		cmds = append(cmds, cmd)
	}
}

func TestReader_ParsesNewOrder(t *testing.T) {
	cmds, err := readAll(t, "N, 1, AAPL, 50, 100, B, 1\n", false)
	require.NoError(t, err)
	require.Len(t, cmds, 1)

	cmd := cmds[0]
	assert.Equal(t, New, cmd.Kind)
	assert.Equal(t, uint64(1), cmd.UserID)
	assert.Equal(t, "AAPL", cmd.Symbol)
	assert.Equal(t, uint64(50), cmd.Price)
	assert.Equal(t, uint64(100), cmd.Quantity)
	assert.Equal(t, common.Buy, cmd.Side)
	assert.Equal(t, uint64(1), cmd.UserOrderID)
}

func TestReader_ZeroPriceIsStillNewCommand(t *testing.T) {
	cmds, err := readAll(t, "N, 1, AAPL, 0, 100, S, 1\n", false)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, uint64(0), cmds[0].Price)
}

func TestReader_ParsesCancelAndFlush(t *testing.T) {
	cmds, err := readAll(t, "C, 1, 7\nF\n", false)
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	assert.Equal(t, Cancel, cmds[0].Kind)
	assert.Equal(t, uint64(1), cmds[0].UserID)
	assert.Equal(t, uint64(7), cmds[0].UserOrderID)

	assert.Equal(t, Flush, cmds[1].Kind)
}

func TestReader_SkipsCommentsAndBlankLines(t *testing.T) {
	input := "# a comment\n\nN, 1, AAPL, 50, 100, B, 1\n"
	cmds, err := readAll(t, input, false)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
}

func TestReader_StrictMode_RejectsUnknownTag(t *testing.T) {
	_, err := readAll(t, "Z, 1, 2\n", false)
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestReader_StrictMode_RejectsNonNumericField(t *testing.T) {
	_, err := readAll(t, "N, abc, AAPL, 50, 100, B, 1\n", false)
	require.Error(t, err)
}

func TestReader_StrictMode_RejectsInvalidSide(t *testing.T) {
	_, err := readAll(t, "N, 1, AAPL, 50, 100, X, 1\n", false)
	require.Error(t, err)
}

func TestReader_TolerantMode_SkipsUnknownTag(t *testing.T) {
	cmds, err := readAll(t, "Z, 1, 2\nF\n", true)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, Flush, cmds[0].Kind)
}

func TestReader_TolerantMode_SkipsUnrecognizedSide(t *testing.T) {
	cmds, err := readAll(t, "N, 1, AAPL, 50, 100, X, 1\nF\n", true)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, Flush, cmds[0].Kind)
}

func TestReader_TolerantMode_LogsSkippedUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := NewReader(strings.NewReader("Z, 1, 2\nF\n"), true, log)

	cmd, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Flush, cmd.Kind)
	assert.Contains(t, buf.String(), "unknown command tag")
}

func TestReader_TolerantMode_LogsSkippedUnrecognizedSide(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := NewReader(strings.NewReader("N, 1, AAPL, 50, 100, X, 1\nF\n"), true, log)

	cmd, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Flush, cmd.Kind)
	assert.Contains(t, buf.String(), "unrecognized side token")
}

func TestReader_TolerantMode_DefaultsMalformedNumericFields(t *testing.T) {
	cmds, err := readAll(t, "N, abc, AAPL, xyz, 100, B, 1\n", true)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, uint64(0), cmds[0].UserID)
	assert.Equal(t, uint64(0), cmds[0].Price)
	assert.Equal(t, uint64(100), cmds[0].Quantity)
}
