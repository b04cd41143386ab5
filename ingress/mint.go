package ingress

import (
	"privadex.dev/node/object"
	"privadex.dev/node/param"
	"privadex.dev/node/store"
)

// currentBlockLevel reads the DB_KEY_COMMIT_BLOCKLEVEL parameter tree.Engine
// maintains, per spec.md §4.C.
func currentBlockLevel(s *store.Snapshot) (uint64, error) {
	v, ok, err := s.ParameterSelect(param.DBKeyCommitBlockLevel, 0)
	if err != nil {
		return 0, err
	}
	if !ok || len(v) != 8 {
		return 0, nil
	}
	var level uint64
	for _, c := range v {
		level = level<<8 | uint64(c)
	}
	return level, nil
}

// checkMintEra implements spec.md §4.D.1 step 6: the mint-era parameter
// level bounds and the off-testnet mint prohibition, grounded line for line
// on original_source's transact.cpp (HandleMsgReadComplete's CC_TAG_MINT
// branch).
func (s *Server) checkMintEra(tag object.Tag, payload []byte) error {
	if tag == object.TagMint && !s.netParams.Testnet {
		return errInvalid("mint transactions are not permitted off testnet")
	}

	paramLevel, err := object.TxParamLevel(payload)
	if err != nil {
		return errInvalid("structurally invalid object")
	}

	var blockLevel uint64
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		var err error
		blockLevel, err = currentBlockLevel(snap)
		return err
	})
	if err != nil {
		return errServer("server error")
	}

	if tag == object.TagMint {
		invalid := paramLevel == 0 ||
			(paramLevel == 1 && blockLevel > uint64(param.MintAcceptSpan)+1) ||
			(paramLevel > 1 && paramLevel+uint64(param.MintAcceptSpan)+1 < blockLevel) ||
			paramLevel >= uint64(param.MintCount) ||
			paramLevel > blockLevel
		if invalid {
			return errInvalid("invalid param level for mint tx")
		}
		return nil
	}

	if paramLevel < uint64(param.MintCount)+uint64(param.MintAcceptSpan) {
		return errInvalid("invalid param level for non-mint tx")
	}
	return nil
}
