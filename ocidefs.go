package oracle

// This file defines the subset of OCI constants the driver uses. Names and
// values follow oci.h so the native layer can be cross-checked against the
// Oracle client headers.

// Call statuses. Every native call returns exactly one of these.
const (
	OCISuccess         int32 = 0
	OCISuccessWithInfo int32 = 1
	OCINoData          int32 = 100
	OCIError           int32 = -1
	OCIInvalidHandle   int32 = -2
	OCINeedData        int32 = 99
	OCIStillExecuting  int32 = -3123
)

// Handle types.
const (
	htypeEnv     uint32 = 1
	htypeError   uint32 = 2
	htypeSvcCtx  uint32 = 3
	htypeStmt    uint32 = 4
	htypeServer  uint32 = 8
	htypeSession uint32 = 9
	htypeSPool   uint32 = 27
	htypeAuth    uint32 = 12
)

// Descriptor types.
const (
	dtypeParam        uint32 = 53
	dtypeRowid        uint32 = 54
	dtypeLob          uint32 = 50
	dtypeFile         uint32 = 56
	dtypeTimestamp    uint32 = 68
	dtypeTimestampTZ  uint32 = 69
	dtypeTimestampLTZ uint32 = 70
	dtypeIntervalYM   uint32 = 62
	dtypeIntervalDS   uint32 = 63
)

// Attributes.
const (
	attrDataSize        uint32 = 1
	attrDataType        uint32 = 2
	attrName            uint32 = 4
	attrIsNull          uint32 = 7
	attrRowCount        uint32 = 9
	attrParamCount      uint32 = 18
	attrStmtType        uint32 = 24
	attrBindCount       uint32 = 190
	attrRowid           uint32 = 19
	attrUsername        uint32 = 22
	attrPassword        uint32 = 23
	attrServer          uint32 = 6
	attrSession         uint32 = 7
	attrNonblockingMode uint32 = 3
	attrDriverName      uint32 = 424
	attrCallTimeout     uint32 = 531
	attrStmtCacheSize   uint32 = 176
)

// Statement kinds reported by attrStmtType.
const (
	StmtUnknown uint16 = 0
	StmtSelect  uint16 = 1
	StmtUpdate  uint16 = 2
	StmtDelete  uint16 = 3
	StmtInsert  uint16 = 4
	StmtCreate  uint16 = 5
	StmtDrop    uint16 = 6
	StmtAlter   uint16 = 7
	StmtBegin   uint16 = 8
	StmtDeclare uint16 = 9
	StmtCall    uint16 = 10
	StmtMerge   uint16 = 16
)

// External (SQLT) data type codes used for binds and defines.
const (
	sqltChr          uint16 = 1   // character string
	sqltNum          uint16 = 2   // Oracle NUMBER
	sqltInt          uint16 = 3   // native signed integer
	sqltFlt          uint16 = 4   // native float
	sqltStr          uint16 = 5   // NUL-terminated string
	sqltVnu          uint16 = 6   // NUMBER with length prefix
	sqltLng          uint16 = 8   // LONG
	sqltUin          uint16 = 68  // native unsigned integer
	sqltDat          uint16 = 12  // 7-byte internal date
	sqltBin          uint16 = 23  // RAW
	sqltLbi          uint16 = 24  // LONG RAW
	sqltAfc          uint16 = 96  // CHAR
	sqltIBFloat      uint16 = 100 // BINARY_FLOAT
	sqltIBDouble     uint16 = 101 // BINARY_DOUBLE
	sqltRdd          uint16 = 104 // ROWID descriptor
	sqltClob         uint16 = 112
	sqltBlob         uint16 = 113
	sqltBFile        uint16 = 114
	sqltRSet         uint16 = 116 // REF CURSOR
	sqltTimestamp    uint16 = 187
	sqltTimestampTZ  uint16 = 188
	sqltIntervalYM   uint16 = 189
	sqltIntervalDS   uint16 = 190
	sqltTimestampLTZ uint16 = 232
	sqltBFloat       uint16 = 21 // BINARY_FLOAT external
	sqltBDouble      uint16 = 22 // BINARY_DOUBLE external
)

// Call modes.
const (
	modeDefault      uint32 = 0
	modeThreaded     uint32 = 1
	modeObject       uint32 = 2
	modeCredRdbms    uint32 = 1 // OCI_CRED_RDBMS for OCISessionBegin
	modeSessGetSPool uint32 = 1 << 3
	modeSPoolAttrGet uint32 = 0
	modeStmtCache    uint32 = 1 << 6
)

// NULL indicator values reported alongside fetched data.
//
//	-2 : value truncated, original length did not fit the indicator
//	-1 : value is NULL, the output buffer is unchanged
//	 0 : an intact value was assigned
//	>0 : value truncated, indicator holds the length before truncation
const (
	indNotNull   int16 = 0
	indNull      int16 = -1
	indTruncated int16 = -2
)

// defaultLongBufferSize caps the initial buffer for LONG and LONG RAW
// columns. It can be raised per statement before the first fetch.
const defaultLongBufferSize = 32768

// ociNumberSize is the size of the internal OCINumber representation.
const ociNumberSize = 22

// ociDateSize is the size of the 7-byte internal date representation.
const ociDateSize = 7
