package hal

// PadOffset is the command frame byte that never crosses the wire. The
// fragment stream skips it, and the receiving end reinserts it as zero.
const PadOffset = 3

// Split cuts a command frame into fragments. Frame byte PadOffset is
// skipped, and every fragment but the last has More set.
func Split(frame []byte) []Fragment {
	stream := make([]byte, 0, len(frame))
	if len(frame) > PadOffset {
		stream = append(stream, frame[:PadOffset]...)
		stream = append(stream, frame[PadOffset+1:]...)
	} else {
		stream = append(stream, frame...)
	}

	n := (len(stream) + FragmentPayload - 1) / FragmentPayload
	frags := make([]Fragment, n)
	for i := range frags {
		chunk := stream[i*FragmentPayload : min((i+1)*FragmentPayload, len(stream))]
		copy(frags[i].Data[:], chunk)
		frags[i].Len = uint8(len(chunk))
		frags[i].More = i < n-1
	}
	return frags
}

// Assembler collects fragments on the receiving side and rebuilds the
// command frame, reinserting the pad byte.
type Assembler struct {
	stream []byte
}

// Add appends f. It returns the rebuilt frame when f completes a command,
// or nil while more fragments are expected.
func (a *Assembler) Add(f *Fragment) []byte {
	a.stream = append(a.stream, f.Bytes()...)
	if f.More {
		return nil
	}
	stream := a.stream
	a.stream = nil

	if len(stream) <= PadOffset {
		return stream
	}
	frame := make([]byte, 0, len(stream)+1)
	frame = append(frame, stream[:PadOffset]...)
	frame = append(frame, 0)
	return append(frame, stream[PadOffset:]...)
}

// Pending returns the number of buffered bytes of an incomplete command.
func (a *Assembler) Pending() int {
	return len(a.stream)
}
