// Package lbuf reads the loop buffer: a ring of variable-length cells that
// sensor hub firmware writes into a host-visible memory window.
//
// Every cell starts with a 4-byte [Header]. A header signed [CellSign]
// carries a payload of Length bytes, padded to a 4-byte boundary. A header
// signed [DiscardSign] marks the point where firmware wrapped, and the
// reader restarts at offset 0. Any other sign means firmware has not
// written further yet.
//
// Callers drain the ring on every wake event:
//
//	for {
//	    frame, ok := buf.ReadNext()
//	    if !ok {
//	        break
//	    }
//	    handle(frame)
//	}
//
// When the reader runs out of cells it reports the consumed offset through
// the callback passed to [New] so firmware can reclaim the space.
package lbuf
