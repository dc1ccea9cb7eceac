package client

import (
	"context"
	"errors"
	"io"
	"net"
)

// ListenForAcks reads acknowledgments until the connection closes or ctx is
// done, delivering each echoed line on acks. It closes acks when it returns.
// It should be run in a goroutine.
func (c *Client) ListenForAcks(ctx context.Context, acks chan<- string) error {
	defer close(acks)

	for {
		line, err := c.ReadAck()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.log.Info().Msg("server connection closed, stopping listener")
				return nil
			}
			return err
		}

		select {
		case acks <- line:
		case <-ctx.Done():
			return nil
		}
	}
}
