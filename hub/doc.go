// Package hub implements the host side of the platform sensor hub
// protocol.
//
// A Hub owns the command path and the delivery path. Commands are 63-byte
// frames sent in 7-byte fragments; [Hub.SendCommand] allows one command
// in flight and blocks until firmware acknowledges it or the ack timeout
// expires. Inbound frames, pushed by the transport or drained from the
// firmware loop buffer, go through [Hub.DeliverFrame], which decodes them
// into one of a closed set of [Response] variants:
//
//   - acks complete the waiting command
//   - debug text, status dumps and trace records are rendered to the trace
//     stream ([Hub.ReadTrace])
//   - masks, counters and the version string update cached state
//   - everything else is sensor data ([Hub.ReadData])
//
// Sensor ids are resolved to names through a [Registry] that is filled
// from the first status dump.
//
// Basic usage:
//
//	tr, err := fifo.Dial(dir)
//	if err != nil {
//		return err
//	}
//	h := hub.New(hub.DefaultConfig(), tr, nil)
//	if err := h.Start(ctx); err != nil {
//		return err
//	}
//	defer h.Stop()
//
//	v, err := h.Version(ctx)
package hub
