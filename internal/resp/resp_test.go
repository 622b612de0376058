package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOneShot(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))

	cmd, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, cmd)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecodeByteByByte(t *testing.T) {
	full := []byte("*3\r\n$3\r\nSET\r\n$1\r\nx\r\n$1\r\n1\r\n")
	d := NewDecoder()

	var got [][]byte
	for i := 0; i < len(full); i++ {
		d.Feed(full[i : i+1])
		cmd, ok, err := d.Next()
		require.NoError(t, err)
		if ok {
			got = cmd
		}
	}

	assert.Equal(t, [][]byte{[]byte("SET"), []byte("x"), []byte("1")}, got)
}

func TestDecodePartialLeavesBufferIntact(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfo"))

	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, len("*2\r\n$3\r\nGET\r\n$3\r\nfo"), d.Buffered())

	d.Feed([]byte("o\r\n"))
	cmd, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, cmd)
}

func TestDecodeMultipleCommandsInOneChunk(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"))

	var commands int
	for {
		_, ok, err := d.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		commands++
	}
	assert.Equal(t, 2, commands)
}

func TestDecodeMalformedArrayLength(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*abc\r\n"))
	_, _, err := d.Next()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestEncodeCommandRoundTrips(t *testing.T) {
	wire := EncodeCommand("SET", "x", "1")
	d := NewDecoder()
	d.Feed(wire)
	cmd, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [][]byte{[]byte("SET"), []byte("x"), []byte("1")}, cmd)
}

func TestEncodeReplies(t *testing.T) {
	assert.Equal(t, "+PONG\r\n", string(SimpleString("PONG").Encode()))
	assert.Equal(t, "-ERR bad\r\n", string(Error("ERR bad").Encode()))
	assert.Equal(t, ":5\r\n", string(Integer(5).Encode()))
	assert.Equal(t, "$3\r\nbar\r\n", string(Bulk("bar").Encode()))
	assert.Equal(t, "$-1\r\n", string(Bulk(nil).Encode()))
	assert.Equal(t, "*-1\r\n", string(Array(nil).Encode()))
	assert.Equal(t, "*0\r\n", string(Array{}.Encode()))
	assert.Equal(t, "*2\r\n$4\r\npong\r\n$0\r\n\r\n",
		string(Array{Bulk("pong"), Bulk("")}.Encode()))
}
