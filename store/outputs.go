package store

import "encoding/binary"

// TxOutput is a commitment-tree leaf record indexed by destination address,
// serving TX_QUERY_ADDRESS (spec.md §4.E). Address is the commitment's
// recipient address commitment, not a plaintext pubkey.
type TxOutput struct {
	Blockchain uint64
	Address    [32]byte
	Commitnum  uint64
	Commitment []byte
	Domain     uint32
	Asset      uint64
	Amount     []byte
	Timestamp  uint64
}

func outputKey(blockchain uint64, address [32]byte, commitnum uint64) []byte {
	return concatKey(be64(blockchain), address[:], be64(commitnum))
}

func encodeTxOutput(o TxOutput) []byte {
	buf := make([]byte, 4+8+4+len(o.Amount)+len(o.Commitment)+1)
	binary.BigEndian.PutUint32(buf[0:4], o.Domain)
	binary.BigEndian.PutUint64(buf[4:12], o.Asset)
	buf[12] = byte(len(o.Amount))
	n := 13
	copy(buf[n:], o.Amount)
	n += len(o.Amount)
	copy(buf[n:], o.Commitment)
	return buf
}

func decodeTxOutput(blockchain uint64, address [32]byte, commitnum uint64, timestamp uint64, b []byte) (TxOutput, error) {
	if len(b) < 13 {
		return TxOutput{}, storeErr(ErrIO, "tx_outputs: truncated row")
	}
	domain := binary.BigEndian.Uint32(b[0:4])
	asset := binary.BigEndian.Uint64(b[4:12])
	amountLen := int(b[12])
	if len(b) < 13+amountLen {
		return TxOutput{}, storeErr(ErrIO, "tx_outputs: truncated amount")
	}
	amount := append([]byte(nil), b[13:13+amountLen]...)
	commitment := append([]byte(nil), b[13+amountLen:]...)
	return TxOutput{
		Blockchain: blockchain,
		Address:    address,
		Commitnum:  commitnum,
		Commitment: commitment,
		Domain:     domain,
		Asset:      asset,
		Amount:     amount,
		Timestamp:  timestamp,
	}, nil
}

// TxOutputInsert records an output under its address, keyed so that a
// cursor seek at (blockchain, address, commitStart) and forward-scan
// delivers TX_QUERY_ADDRESS results in increasing commitnum order.
func (w *WriteTx) TxOutputInsert(o TxOutput) error {
	key := outputKey(o.Blockchain, o.Address, o.Commitnum)
	ts := be64(o.Timestamp)
	val := append(ts, encodeTxOutput(o)...)
	return w.bucket(bucketTxOutputs).Put(key, val)
}

// TxOutputsByAddress returns up to maxRet outputs for (blockchain, address)
// with commitnum >= commitStart, per TX_QUERY_ADDRESS (spec.md §4.E).
func (s *Snapshot) TxOutputsByAddress(blockchain uint64, address [32]byte, commitStart uint64, maxRet int) ([]TxOutput, error) {
	b := s.bucket(bucketTxOutputs)
	c := b.Cursor()
	prefix := concatKey(be64(blockchain), address[:])
	seekKey := concatKey(prefix, be64(commitStart))

	out := make([]TxOutput, 0, maxRet)
	for k, v := c.Seek(seekKey); k != nil && len(out) < maxRet; k, v = c.Next() {
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			break
		}
		commitnum := decodeBE64(k[len(prefix):])
		if len(v) < 8 {
			return nil, storeErr(ErrIO, "tx_outputs: truncated value")
		}
		ts := decodeBE64(v[:8])
		rec, err := decodeTxOutput(blockchain, address, commitnum, ts, v[8:])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
