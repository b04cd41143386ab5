package store

// params(key, subkey) -> blob, per spec.md §4.B. subkey lets one logical
// key hold multiple related blobs (the teacher's dbparamkeys.h convention,
// carried over from original_source's DB_KEY_* scheme).
func paramKey(key string, subkey uint32) []byte {
	return concatKey([]byte(key), []byte{0}, be32(subkey))
}

func (s *Snapshot) ParameterSelect(key string, subkey uint32) ([]byte, bool, error) {
	v := s.bucket(bucketParams).Get(paramKey(key, subkey))
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (w *WriteTx) ParameterInsert(key string, subkey uint32, value []byte) error {
	return w.bucket(bucketParams).Put(paramKey(key, subkey), value)
}
