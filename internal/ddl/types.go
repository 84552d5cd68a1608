package ddl

// Logical column types understood by every Style.
const (
	TypeBigInt    = "bigint"
	TypeVarchar   = "varchar"
	TypeTimestamp = "timestamp"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: logical type mapped through Style.MapType, or a raw SQL type
//     when the style has no mapper
//   - Size: length for sized types such as varchar
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Unique: adds a UNIQUE constraint on the column
//   - References: "table(column)" target of a foreign key, if any
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Size       int
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	References string
	Default    string
}

// TableDef holds the table name and an ordered list of columns. FQN may be
// dotted ("schema.table"); styles quote each segment.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Schema returns the three HR tables in foreign-key order.
func Schema() []TableDef {
	return []TableDef{
		{
			FQN: "departments",
			Columns: []ColumnDef{
				{Name: "id", SQLType: TypeBigInt, PrimaryKey: true},
				{Name: "name", SQLType: TypeVarchar, Size: 120, Unique: true},
			},
		},
		{
			FQN: "jobs",
			Columns: []ColumnDef{
				{Name: "id", SQLType: TypeBigInt, PrimaryKey: true},
				{Name: "title", SQLType: TypeVarchar, Size: 120, Unique: true},
			},
		},
		{
			FQN: "employees",
			Columns: []ColumnDef{
				{Name: "id", SQLType: TypeBigInt, PrimaryKey: true},
				{Name: "name", SQLType: TypeVarchar, Size: 80},
				{Name: "department_id", SQLType: TypeBigInt, Nullable: true, References: "departments(id)"},
				{Name: "job_id", SQLType: TypeBigInt, Nullable: true, References: "jobs(id)"},
				{Name: "hire_date", SQLType: TypeTimestamp, Nullable: true},
			},
		},
	}
}
