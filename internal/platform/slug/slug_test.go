package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	t.Parallel()
	require.Equal(t, "s-1", Make("s-1"))
	require.Equal(t, "09-30-reading-net-http", Make("09:30", "", " Reading net/http "))
	require.Equal(t, "untitled", Make("", "!!"))

	long := Make(strings.Repeat("word ", 30))
	require.LessOrEqual(t, len(long), 80)
	require.False(t, strings.HasSuffix(long, "-"))
	require.True(t, strings.HasSuffix(long, "word"))
}
