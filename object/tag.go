package object

// Tag identifies a request's wire-level type. Values are the CC_TAG_*
// constants named in spec.md §4.D and §6.1.
type Tag uint32

const (
	TagQueryParams Tag = iota + 1
	TagQueryAddress
	TagQueryInputs
	TagQuerySerial
	TagQueryXreqs
	TagQueryXmatchObjID
	TagQueryXmatchReqnum
	TagQueryXmatchMatchnum
	TagQueryXminingInfo

	TagTx
	TagMint
	TagTxXdomain

	TagXcxPayment
	TagXcxNakedBuy
	TagXcxNakedSell
	TagXcxSimpleBuy
	TagXcxSimpleSell
	TagXcxReqCancel
	TagXcxMatchAccept
	TagXcxMatchReject
	TagXcxMatchComplete
)

// Class distinguishes the handling rules that vary by tag: POW difficulty,
// clock allowance, and whether the body carries a fully formed object versus
// a compact query payload.
type Class int

const (
	ClassQueryParams Class = iota // no POW, no clock check
	ClassQuery                    // query difficulty, (40m,5m) allowance
	ClassTx                       // tx difficulty, (40m,5m) allowance
	ClassXcxPay                   // xcx_pay difficulty, (40m,5m) allowance
)

var classByTag = map[Tag]Class{
	TagQueryParams:         ClassQueryParams,
	TagQueryAddress:        ClassQuery,
	TagQueryInputs:         ClassQuery,
	TagQuerySerial:         ClassQuery,
	TagQueryXreqs:          ClassQuery,
	TagQueryXmatchObjID:    ClassQuery,
	TagQueryXmatchReqnum:   ClassQuery,
	TagQueryXmatchMatchnum: ClassQuery,
	TagQueryXminingInfo:    ClassQuery,

	TagTx:        ClassTx,
	TagMint:      ClassTx,
	TagTxXdomain: ClassTx,

	TagXcxPayment:       ClassXcxPay,
	TagXcxNakedBuy:      ClassTx,
	TagXcxNakedSell:     ClassTx,
	TagXcxSimpleBuy:     ClassTx,
	TagXcxSimpleSell:    ClassTx,
	TagXcxReqCancel:     ClassTx,
	TagXcxMatchAccept:   ClassTx,
	TagXcxMatchReject:   ClassTx,
	TagXcxMatchComplete: ClassTx,
}

// ClassOf returns the handling class for tag, and whether tag is recognized
// at all ("tag must be recognized", spec.md §4.D.1 step 2).
func ClassOf(tag Tag) (Class, bool) {
	c, ok := classByTag[tag]
	return c, ok
}

// IsQueryLike reports whether tag uses the query POW preimage
// (hash of (tag, body_after_pow)) rather than the object-id preimage.
func IsQueryLike(tag Tag) bool {
	c, ok := classByTag[tag]
	if !ok {
		return false
	}
	return c == ClassQuery || c == ClassQueryParams
}

// IsStateChanging reports whether tag is enqueued for validation
// (spec.md §4.D.2 dispatch table: TX/MINT/TX_XDOMAIN/XCX_* rows).
func IsStateChanging(tag Tag) bool {
	switch tag {
	case TagTx, TagMint, TagTxXdomain, TagXcxPayment,
		TagXcxNakedBuy, TagXcxNakedSell, TagXcxSimpleBuy, TagXcxSimpleSell,
		TagXcxReqCancel, TagXcxMatchAccept, TagXcxMatchReject, TagXcxMatchComplete:
		return true
	default:
		return false
	}
}

// Priority values for the validator queue, per spec.md §4.D.2.
type Priority int

const (
	PriorityTxHi   Priority = 1
	PriorityXReqHi Priority = 2
)

// PriorityOf returns the enqueue priority for a state-changing tag.
func PriorityOf(tag Tag) Priority {
	switch tag {
	case TagXcxNakedBuy, TagXcxNakedSell, TagXcxSimpleBuy, TagXcxSimpleSell:
		return PriorityXReqHi
	default:
		return PriorityTxHi
	}
}
