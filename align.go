package jobsched

// inlineSuccessorCapacity is the number of successor pointers stored inline
// in a jobRecord before overflowing into a chained aggregator record. Fixed
// at 6 (the 64-bit-host figure from the original implementation); Go has no
// realistic 32-bit server deployment target, so the 32-bit/64-bit
// bifurcation the original carried is not reproduced. The last inline slot
// is reserved for the overflow chain pointer, so inlineSuccessorCapacity-1
// successors fit before a chain record is allocated.
const inlineSuccessorCapacity = 6

// doneXID is the reserved sentinel value of jobRecord.xid meaning "this
// record has completed (or was never initialized)". The per-Manager xid
// counter starts at 1 so no live handle ever observes this value as current.
const doneXID uint64 = 0
