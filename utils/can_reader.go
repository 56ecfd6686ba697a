package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// CANReader reads frames from a CAN transport.
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type SocketCANReader struct {
	conn net.Conn
	recv *socketcan.Receiver

	closeOnce sync.Once
	closeErr  error
}

func NewSocketCANReader(ctx context.Context, ifname string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", ifname, err)
	}
	return &SocketCANReader{
		conn: conn,
		recv: socketcan.NewReceiver(conn),
	}, nil
}

// ReadFrame blocks until a data frame arrives or ctx is done. Cancelling ctx
// unblocks the pending read by closing the socket.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	type result struct {
		frame can.Frame
		err   error
	}
	ch := make(chan result, 1)

	go func() {
		for r.recv.Receive() {
			if r.recv.HasErrorFrame() {
				continue
			}
			ch <- result{frame: r.recv.Frame()}
			return
		}
		err := r.recv.Err()
		if err == nil {
			err = errors.New("socketcan receiver closed")
		}
		ch <- result{err: err}
	}()

	select {
	case <-ctx.Done():
		_ = r.Close()
		return can.Frame{}, ctx.Err()
	case res := <-ch:
		return res.frame, res.err
	}
}

// Close closes the socket. Later calls return the first call's result.
func (r *SocketCANReader) Close() error {
	r.closeOnce.Do(func() {
		if r.conn != nil {
			r.closeErr = r.conn.Close()
		}
	})
	return r.closeErr
}
