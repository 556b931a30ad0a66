package dbpebble

// Prefix Keys "K"
const (
	KIngressKey = 0x01 // | len | key                          -> ingress key record
	KInvocation = 0x02 // | uuid                               -> invocation record
	KInvByKey   = 0x03 // | len | key | uuid                   -> nil (secondary index)
	KPrimary    = 0x04 // | len | key                          -> uuid of the primary
	KHighWater  = 0x05 // | len | key                          -> 8B contiguous mark
	KGap        = 0x06 // | len | key | 8B index               -> nil
	KIngested   = 0x07 // | len | key | 8B index               -> 32B content hash
	KRngActive  = 0x08 // | len | account                      -> rng record
	KRngRetired = 0x09 // | len | account | 8B seq             -> rng record
	KRngByKey   = 0x0A // | len | key | account                -> nil (secondary index)
	KOutput     = 0x0B // | len | searchKey | 8B idx | 32B ph  -> output record
	KReport     = 0x0C // | len | key | 8B seq                 -> report record
	KMissed     = 0x0D // | len | key | 8B start | 8B end      -> nil
)

const (
	SizeIndex = 8
	SizeHash  = 32
)
