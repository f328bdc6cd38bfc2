package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/callgrind-analysis/pkg/model"
)

// ProfileRecord is one stored profile.
type ProfileRecord struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UUID        string    `gorm:"column:uuid;size:64;uniqueIndex"`
	Source      string    `gorm:"column:source;size:512"`
	Command     string    `gorm:"column:command;size:1024"`
	Creator     string    `gorm:"column:creator;size:256"`
	Events      JSONField `gorm:"column:events"`
	Header      JSONField `gorm:"column:header"`
	Totals      JSONField `gorm:"column:totals"`
	Declared    JSONField `gorm:"column:declared_totals"`
	Functions   int       `gorm:"column:function_count"`
	Diagnostics int       `gorm:"column:diagnostic_count"`
	CreatedAt   time.Time `gorm:"column:create_time;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (ProfileRecord) TableName() string {
	return "callgrind_profile"
}

// FunctionRecord is the cost of one function within a profile. PrimarySelf
// and PrimaryInclusive repeat the first event so rows can be ordered in SQL.
type FunctionRecord struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ProfileID        uint64    `gorm:"column:profile_id;index"`
	Ordinal          int       `gorm:"column:ordinal"`
	Object           string    `gorm:"column:object;size:512"`
	File             string    `gorm:"column:file;size:512"`
	Name             string    `gorm:"column:name;size:1024"`
	Self             JSONField `gorm:"column:self_cost"`
	Inclusive        JSONField `gorm:"column:inclusive_cost"`
	PrimarySelf      int64     `gorm:"column:primary_self;index"`
	PrimaryInclusive int64     `gorm:"column:primary_inclusive"`
}

// TableName specifies the table name for GORM.
func (FunctionRecord) TableName() string {
	return "callgrind_function"
}

// FunctionID returns the identity of the function.
func (r *FunctionRecord) FunctionID() model.FunctionID {
	return model.FunctionID{Object: r.Object, File: r.File, Name: r.Name}
}

// CallEdgeRecord is one caller to callee edge within a profile.
type CallEdgeRecord struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ProfileID    uint64    `gorm:"column:profile_id;index"`
	CallerID     uint64    `gorm:"column:caller_id;index"`
	Ordinal      int       `gorm:"column:ordinal"`
	CalleeObject string    `gorm:"column:callee_object;size:512"`
	CalleeFile   string    `gorm:"column:callee_file;size:512"`
	CalleeName   string    `gorm:"column:callee_name;size:1024"`
	Calls        int64     `gorm:"column:calls"`
	Cost         JSONField `gorm:"column:cost"`
}

// TableName specifies the table name for GORM.
func (CallEdgeRecord) TableName() string {
	return "callgrind_call_edge"
}

// AllModels lists the models for migrations.
func AllModels() []interface{} {
	return []interface{}{&ProfileRecord{}, &FunctionRecord{}, &CallEdgeRecord{}}
}

// clampInt64 maps a saturated counter onto the signed column range.
func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func primary(v model.CostVector) int64 {
	if len(v) == 0 {
		return 0
	}
	return clampInt64(v[0])
}

func mustJSON(v interface{}) (JSONField, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONField(data), nil
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("unsupported type for JSONField")
	}
	return nil
}

// GormDataType stores JSON as text on every dialect.
func (JSONField) GormDataType() string {
	return "text"
}

// Decode unmarshals the field into v. A NULL field leaves v untouched.
func (j JSONField) Decode(v interface{}) error {
	if j == nil {
		return nil
	}
	return json.Unmarshal(j, v)
}
