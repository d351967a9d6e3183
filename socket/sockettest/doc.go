// Package sockettest turns an event-driven socket.Client into an object a test
// can wait on.
//
// A Socket records every inbound frame in a ledger from the moment it is
// created, before the connection opens, so no message can slip past a test
// between connecting and its first wait. Tests then block on one of three
// waiters:
//
//	s := sockettest.Connect(url)
//	defer s.Close()
//	require.NoError(t, s.AwaitState(ctx, socket.StateOpen))
//	require.NoError(t, s.Request(socket.TypeEcho, "hello"))
//	require.NoError(t, s.AwaitMessage(ctx, "hello"))
//
// Every waiter returns at once when its condition already holds. Otherwise it
// registers a listener, arms a timer and blocks. When the timer fires the
// listener is removed and the condition is checked one final time before a
// *TimeoutError is returned. The timer and listener are released on every
// return path.
package sockettest
