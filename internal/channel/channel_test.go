package channel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTeubler/wsn-device-utils/internal/driver"
	"github.com/TTeubler/wsn-device-utils/internal/driver/drivertest"
	"github.com/TTeubler/wsn-device-utils/internal/framing"
	"github.com/TTeubler/wsn-device-utils/internal/writer"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type captured struct {
	mu        sync.Mutex
	frames    [][]byte
	shutdowns int
	delay     time.Duration
	err       error
}

func (c *captured) Write(data []byte, _ time.Time) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	return c.err
}

func (c *captured) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdowns++
	return nil
}

func (c *captured) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func openTest(t *testing.T, conn driver.Conn, out writer.Writer, opts Options) *Channel {
	t.Helper()
	opts.Now = func() time.Time { return testTime }
	ch, err := Open(conn, out, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestOpenNotConnected(t *testing.T) {
	conn := drivertest.NewConn()
	conn.Disconnect()

	_, err := Open(conn, &captured{}, Options{})
	assert.ErrorIs(t, err, driver.ErrConnection)
}

func TestFramesAcrossChunks(t *testing.T) {
	conn := drivertest.NewConn()
	out := &captured{}
	ch := openTest(t, conn, out, Options{ReadBufferSize: 3})

	stream := append(framing.Encode([]byte{0xAB, 0xCD}), framing.Encode([]byte{framing.DLE, 0x01})...)
	stream = append(stream, framing.Encode([]byte("third"))...)

	// Split mid-escape and mid-frame.
	require.NoError(t, conn.Feed(stream[:5]))
	require.NoError(t, conn.Feed(stream[5:9]))
	require.NoError(t, conn.Feed(stream[9:]))
	conn.EndOfStream()

	<-ch.Done()
	assert.NoError(t, ch.Err())
	assert.Equal(t, [][]byte{{0xAB, 0xCD}, {framing.DLE, 0x01}, []byte("third")}, out.Frames())
}

func TestSlowWriterLosesNothing(t *testing.T) {
	conn := drivertest.NewConn()
	out := &captured{delay: time.Millisecond}
	ch := openTest(t, conn, out, Options{})

	const n = 30
	go func() {
		for i := range n {
			_ = conn.Feed(framing.Encode([]byte{byte(i)}))
		}
		conn.EndOfStream()
	}()

	<-ch.Done()
	frames := out.Frames()
	require.Len(t, frames, n)
	for i, f := range frames {
		assert.Equal(t, []byte{byte(i)}, f)
	}
}

func TestWriterErrorsDoNotStopCapture(t *testing.T) {
	conn := drivertest.NewConn()
	out := &captured{err: errors.New("disk full")}
	ch := openTest(t, conn, out, Options{})

	require.NoError(t, conn.Feed(framing.Encode([]byte{1})))
	require.NoError(t, conn.Feed(framing.Encode([]byte{2})))
	conn.EndOfStream()

	<-ch.Done()
	assert.Len(t, out.Frames(), 2)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := drivertest.NewConn()
	out := &captured{}
	ch, err := Open(conn, out, Options{})
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	<-ch.Done()
	assert.NoError(t, ch.Err())
	assert.True(t, conn.Closed())
	assert.Equal(t, 1, out.shutdowns)
	assert.ErrorIs(t, ch.Send([]byte{1}), ErrClosed)
}

func TestCloseFlushesRealWriter(t *testing.T) {
	conn := drivertest.NewConn()
	var buf safeBuffer
	ch := openTest(t, conn, writer.NewCSV(writer.NopCloser(&buf)), Options{})

	require.NoError(t, conn.Feed(framing.Encode([]byte{0xAB, 0xCD})))
	require.Eventually(t, func() bool { return buf.Len() > 0 }, time.Second, time.Millisecond)
	require.NoError(t, ch.Close())

	assert.Equal(t, "timestamp,data\n2024-05-01T12:00:00Z,ABCD\n", buf.String())
}

func TestSend(t *testing.T) {
	conn := drivertest.NewConn()
	ch := openTest(t, conn, &captured{}, Options{})

	require.NoError(t, ch.Send([]byte{0x01, framing.DLE}))
	assert.Equal(t, framing.Encode([]byte{0x01, framing.DLE}), conn.Written())
}

type failingConn struct {
	*drivertest.Conn
	err error
}

func (c *failingConn) Read([]byte) (int, error) {
	return 0, c.err
}

func TestReadErrorIsReported(t *testing.T) {
	conn := &failingConn{Conn: drivertest.NewConn(), err: errors.New("port vanished")}
	ch := openTest(t, conn, &captured{}, Options{})

	<-ch.Done()
	assert.ErrorContains(t, ch.Err(), "port vanished")
}

type warnings struct {
	noopLogger
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) Warn(msg string, _ ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func (w *warnings) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.msgs...)
}

func TestCloseReportsPartialFrame(t *testing.T) {
	conn := drivertest.NewConn()
	out := &captured{}
	logs := &warnings{}
	ch := openTest(t, conn, out, Options{Logger: logs})

	require.NoError(t, conn.Feed([]byte{framing.DLE, framing.STX, 0x01, 0x02}))
	require.NoError(t, ch.Close())

	assert.Empty(t, out.Frames())
	assert.Contains(t, logs.Messages(), "discarding partially received frame")
}

func TestCloseAfterCompleteFrameIsQuiet(t *testing.T) {
	conn := drivertest.NewConn()
	logs := &warnings{}
	ch := openTest(t, conn, &captured{}, Options{Logger: logs})

	require.NoError(t, conn.Feed(framing.Encode([]byte{0x01})))
	require.NoError(t, ch.Close())

	assert.NotContains(t, logs.Messages(), "discarding partially received frame")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
