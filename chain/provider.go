package chain

import "github.com/zilcore/zilcore/blockstore"

// FetchWriteData resolves a TX_WRITE record's payload for replay: an
// inline body is returned as-is; an indirect body is read through the
// block engine via its embedded pointer.
func FetchWriteData(engine blockstore.Engine, body []byte) ([]byte, error) {
	w := DecodeWriteBody(body)
	if !w.Indirect {
		return w.Inline, nil
	}
	data, _, err := engine.Read(w.BlkPtr, w.BlkPtr.Seed)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > w.Length {
		data = data[:w.Length]
	}
	return data, nil
}
