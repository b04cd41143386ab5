package store

import "encoding/binary"

// Serial status distinguishes a nullifier seen only in a pending (unconfirmed)
// spend from one made indelible by commit-tree inclusion, per spec.md §4.E's
// serial-status law: once indelible, a serial can never revert to pending or
// absent.
type SerialStatus int

const (
	SerialUnknown SerialStatus = iota
	SerialPending
	SerialIndelible
)

// SerialRecord is the result of a serial-status query: for indelible
// serials it also carries the recorded (hashkey, tx_commitnum), per
// spec.md §8 invariant 4.
type SerialRecord struct {
	Status      SerialStatus
	Hashkey     []byte
	TxCommitnum uint64
}

func encodeIndelibleSerial(hashkey []byte, txCommitnum uint64) []byte {
	buf := make([]byte, 8+len(hashkey))
	binary.BigEndian.PutUint64(buf[:8], txCommitnum)
	copy(buf[8:], hashkey)
	return buf
}

func decodeIndelibleSerial(b []byte) (hashkey []byte, txCommitnum uint64) {
	if len(b) < 8 {
		return nil, 0
	}
	return append([]byte(nil), b[8:]...), binary.BigEndian.Uint64(b[:8])
}

// SerialInsertPending records a serial as spent by a pending request. No-op
// (not an error) if the serial is already indelible, since indelible always
// wins per the serial-status law.
func (w *WriteTx) SerialInsertPending(serial [32]byte) error {
	if w.bucket(bucketSerialsIndelible).Get(serial[:]) != nil {
		return nil
	}
	return w.bucket(bucketSerialsPending).Put(serial[:], []byte{1})
}

// SerialInsertIndelible promotes a serial to indelible (commit-tree
// confirmed), recording (hashkey, txCommitnum), and removes it from the
// pending table since indelible subsumes pending. Once recorded, a second
// call with different values does not overwrite the first — indelible
// status is permanent, per the serial-status law.
func (w *WriteTx) SerialInsertIndelible(serial [32]byte, hashkey []byte, txCommitnum uint64) error {
	b := w.bucket(bucketSerialsIndelible)
	if b.Get(serial[:]) != nil {
		return nil
	}
	if err := b.Put(serial[:], encodeIndelibleSerial(hashkey, txCommitnum)); err != nil {
		return err
	}
	return w.bucket(bucketSerialsPending).Delete(serial[:])
}

// SerialRemovePending drops a pending-only record, e.g. when the request
// that created it is abandoned before confirmation. A no-op if the serial
// has since become indelible.
func (w *WriteTx) SerialRemovePending(serial [32]byte) error {
	if w.bucket(bucketSerialsIndelible).Get(serial[:]) != nil {
		return nil
	}
	return w.bucket(bucketSerialsPending).Delete(serial[:])
}

// SerialStatusSelect reports the current status of a serial, and for
// indelible serials the recorded (hashkey, tx_commitnum), for
// TX_QUERY_SERIAL (spec.md §4.E).
func (s *Snapshot) SerialStatusSelect(serial [32]byte) (SerialRecord, error) {
	if v := s.bucket(bucketSerialsIndelible).Get(serial[:]); v != nil {
		hashkey, txCommitnum := decodeIndelibleSerial(v)
		return SerialRecord{Status: SerialIndelible, Hashkey: hashkey, TxCommitnum: txCommitnum}, nil
	}
	if s.bucket(bucketSerialsPending).Get(serial[:]) != nil {
		return SerialRecord{Status: SerialPending}, nil
	}
	return SerialRecord{Status: SerialUnknown}, nil
}
