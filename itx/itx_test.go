package itx

import (
	"testing"

	"github.com/zilcore/zilcore/chain"
	"github.com/zilcore/zilcore/cos"
)

func TestCreateReclenAligned(t *testing.T) {
	it := Create(chain.TxCreate, 13)
	if it.Header.Reclen%8 != 0 {
		t.Fatalf("reclen %d not 8-byte aligned", it.Header.Reclen)
	}
	if int(it.Header.Reclen) < chain.HeaderSize+13 {
		t.Fatalf("reclen %d too small for header+body", it.Header.Reclen)
	}
	if len(it.Body) != cos.RoundUp8(13) {
		t.Fatalf("body len = %d, want %d", len(it.Body), cos.RoundUp8(13))
	}
	if !it.Sync {
		t.Fatal("Create should default Sync=true")
	}
}

func TestCreateCommitIsCommit(t *testing.T) {
	it := CreateCommit("waiter-placeholder")
	if !it.IsCommit() {
		t.Fatal("CreateCommit itx must report IsCommit() == true")
	}
	if it.Waiter == nil {
		t.Fatal("CreateCommit must carry the waiter")
	}
	if it.Header.Reclen != 0 {
		t.Fatalf("TX_COMMIT must consume no lwb bytes, got reclen=%d", it.Header.Reclen)
	}
}

func TestOrdinaryItxIsNotCommit(t *testing.T) {
	it := Create(chain.TxWrite, 8)
	if it.IsCommit() {
		t.Fatal("an ordinary itx must never report IsCommit()")
	}
}
