package models

// TableState is provisioning status of the destination table.
type TableState int

// TableState values
const (
	TableUnknown TableState = iota
	TableCreating
	TableReady
)

func (x TableState) String() string {
	switch x {
	case TableCreating:
		return "creating"
	case TableReady:
		return "ready"
	default:
		return "unknown"
	}
}

// TableSchema has parameters to create the destination table.
type TableSchema struct {
	TableName     string
	HashKey       string
	HashType      TypeTag
	RangeKey      string
	RangeType     TypeTag
	ReadCapacity  int64
	WriteCapacity int64
}
