package object

import "testing"

func TestClassOfUnknownTag(t *testing.T) {
	if _, ok := ClassOf(Tag(99999)); ok {
		t.Fatalf("unknown tag should not resolve to a class")
	}
}

func TestIsQueryLikeVsStateChanging(t *testing.T) {
	if !IsQueryLike(TagQueryAddress) {
		t.Fatalf("TagQueryAddress should be query-like")
	}
	if IsQueryLike(TagTx) {
		t.Fatalf("TagTx should not be query-like")
	}
	if !IsStateChanging(TagTx) {
		t.Fatalf("TagTx should be state-changing")
	}
	if IsStateChanging(TagQueryAddress) {
		t.Fatalf("TagQueryAddress should not be state-changing")
	}
}

func TestPriorityOfXcxVsTx(t *testing.T) {
	if PriorityOf(TagTx) != PriorityTxHi {
		t.Fatalf("TagTx should enqueue at TX_HI")
	}
	if PriorityOf(TagXcxNakedBuy) != PriorityXReqHi {
		t.Fatalf("TagXcxNakedBuy should enqueue at X_REQ_HI")
	}
}
