//go:build linux || darwin

package gojareactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFdPollHandlerDispatch(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	a := newBoundAdapter(t)

	require.NoError(t, a.Runtime().Set("readFd", int64(p[0])))
	_, err := a.Runtime().RunString(`
		var dispatched = [];
		EventLoop.fdPollHandler = function (fd, revents) {
			dispatched.push([fd, revents]);
			EventLoop.listenFd(fd, 0);
			EventLoop.requestExit();
		};
		EventLoop.listenFd(readFd, 1); // EventRead
	`)
	require.NoError(t, err)

	_, err = unix.Write(p[1], []byte("x"))
	require.NoError(t, err)

	runLoop(t, a.Loop())

	v := a.Runtime().Get("dispatched").Export()
	entries, ok := v.([]interface{})
	require.True(t, ok, "dispatched = %#v", v)
	require.Len(t, entries, 1)
	pair, ok := entries[0].([]interface{})
	require.True(t, ok, "entry = %#v", entries[0])
	assert.EqualValues(t, p[0], pair[0])
	assert.EqualValues(t, 1, pair[1]) // EventRead
}

func TestNoPollHandlerIsSilentlyCleared(t *testing.T) {
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	a := newBoundAdapter(t)

	require.NoError(t, a.Runtime().Set("readFd", int64(p[0])))
	_, err := a.Runtime().RunString(`EventLoop.listenFd(readFd, 1);`)
	require.NoError(t, err)

	_, err = unix.Write(p[1], []byte("x"))
	require.NoError(t, err)

	// a timer stops the loop; the ready descriptor with no handler must
	// not wedge or crash the dispatch pass
	_, err = a.Runtime().RunString(`
		setTimeout(function () {
			EventLoop.listenFd(readFd, 0);
			EventLoop.requestExit();
		}, 5);
	`)
	require.NoError(t, err)

	runLoop(t, a.Loop())
}
