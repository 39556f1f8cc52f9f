package core

// TxMode is the direction of the next bus phase of a transaction.
type TxMode uint8

const (
	ModeNone TxMode = iota
	ModeSend
	ModeReceive
)

func (m TxMode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeReceive:
		return "receive"
	}
	return "none"
}

// Transaction is one addressed exchange: an optional write phase followed by an
// optional read phase, never interleaved.
//
// The transaction borrows the caller's slices. From StartTransaction until
// FinishTransaction hands it back (or until a blocking call returns) the caller
// must not read or write them.
type Transaction struct {
	Addr uint8

	w, r       []byte
	hasW, hasR bool
	wPos, rPos int
}

// WriteTransaction sends w to addr.
func WriteTransaction(addr uint8, w []byte) *Transaction {
	return &Transaction{Addr: addr, w: w, hasW: true}
}

// ReadTransaction fills r from addr.
func ReadTransaction(addr uint8, r []byte) *Transaction {
	return &Transaction{Addr: addr, r: r, hasR: true}
}

// WriteReadTransaction sends w, then fills r after a repeated start.
func WriteReadTransaction(addr uint8, w, r []byte) *Transaction {
	return &Transaction{Addr: addr, w: w, r: r, hasW: true, hasR: true}
}

// HasWrite reports whether the transaction has a write phase.
func (t *Transaction) HasWrite() bool { return t.hasW }

// HasRead reports whether the transaction has a read phase.
func (t *Transaction) HasRead() bool { return t.hasR }

// Sent returns the number of bytes written so far.
func (t *Transaction) Sent() int { return t.wPos }

// Received returns the number of bytes read so far.
func (t *Transaction) Received() int { return t.rPos }

// NeedsSending reports whether outbound bytes remain.
func (t *Transaction) NeedsSending() bool {
	return t.hasW && t.wPos < len(t.w)
}

// NeedsReceiving reports whether inbound slots remain.
func (t *Transaction) NeedsReceiving() bool {
	return t.hasR && t.rPos < len(t.r)
}

// IsFinished reports whether both phases are complete.
func (t *Transaction) IsFinished() bool {
	return !t.NeedsSending() && !t.NeedsReceiving()
}

// Mode returns the direction of the phase in progress. The write phase always
// comes first.
func (t *Transaction) Mode() TxMode {
	switch {
	case t.NeedsSending():
		return ModeSend
	case t.NeedsReceiving():
		return ModeReceive
	}
	return ModeNone
}

// nextByteToSend returns the next outbound byte and advances the cursor.
func (t *Transaction) nextByteToSend() (byte, bool) {
	if !t.NeedsSending() {
		return 0, false
	}
	b := t.w[t.wPos]
	t.wPos++
	return b, true
}

// storeReceivedByte stores b at the inbound cursor. filled is true on the call
// that fills the last slot; stored is false once the range is already full.
func (t *Transaction) storeReceivedByte(b byte) (filled, stored bool) {
	if !t.NeedsReceiving() {
		return false, false
	}
	t.r[t.rPos] = b
	t.rPos++
	return t.rPos == len(t.r), true
}

// remaining returns the number of inbound slots left.
func (t *Transaction) remaining() int {
	if !t.hasR {
		return 0
	}
	return len(t.r) - t.rPos
}
