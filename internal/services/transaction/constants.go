package transaction

// Reference generation
const (
	ReferencePrefix       = "MSIG"
	DefaultReferenceTries = 5
)

// DefaultRejectionReason is stored when a signer rejects without a reason.
const DefaultRejectionReason = "Rejected by signer"

// Operation names used for metrics and logs.
const (
	opInitiate = "transaction.initiate"
	opApprove  = "transaction.approve"
	opReject   = "transaction.reject"
	opExecute  = "transaction.execute"
	opFail     = "transaction.fail"
)

// Transaction data keys
const (
	DataMemo     = "memo"
	DataGasLimit = "gas_limit"
	DataGasPrice = "gas_price"
	DataRawTx    = "raw_tx"
)
