package sockets

import "time"

func WithPingInterval(d time.Duration) func(*Conn) {
	return func(s *Conn) {
		s.pingInterval = d
	}
}

func WithMaxMessageSize(size int64) func(*Conn) {
	return func(s *Conn) {
		s.maxMessageSize = size
	}
}

func InsecureSkipVerify() func(*Conn) {
	return func(s *Conn) {
		s.sslSkipVerify = true
	}
}

// OnMessage is called from the read loop, one message at a time and in arrival order.
func OnMessage(f func([]byte, Connection)) func(*Conn) {
	return func(s *Conn) {
		s.onMessage = f
	}
}

// OnError is called once when the connection fails. It is not called after Close.
func OnError(f func(error)) func(*Conn) {
	return func(s *Conn) {
		s.onError = f
	}
}

func OnConnected(f func(Connection)) func(*Conn) {
	return func(s *Conn) {
		s.onConnected = f
	}
}
