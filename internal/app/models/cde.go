package models

import (
	"clinreg-service/internal/pkg/condexpr"
)

// CdeDataType enumerates the leaf field datatypes a registry may declare.
type CdeDataType string

const (
	DataTypeString     CdeDataType = "string"
	DataTypeInteger    CdeDataType = "integer"
	DataTypeFloat      CdeDataType = "float"
	DataTypeDate       CdeDataType = "date"
	DataTypeBoolean    CdeDataType = "boolean"
	DataTypeRange      CdeDataType = "range"
	DataTypeCalculated CdeDataType = "calculated"
	DataTypeFile       CdeDataType = "file"
)

// CommonDataElement is a single typed clinical field definition. Code is the
// primary key across the whole installation.
type CommonDataElement struct {
	Code                 string      `bson:"code" json:"code"`
	Name                 string      `bson:"name" json:"name"`
	DataType             CdeDataType `bson:"datatype" json:"datatype"`
	PermittedValueGroup  string      `bson:"pv_group" json:"pv_group"`
	AllowMultiple        bool        `bson:"allow_multiple" json:"allow_multiple"`
	MaxLength            int         `bson:"max_length" json:"max_length"`
	MinValue             *float64    `bson:"min_value" json:"min_value"`
	MaxValue             *float64    `bson:"max_value" json:"max_value"`
	Pattern              string      `bson:"pattern" json:"pattern"`
	AbnormalityCondition string      `bson:"abnormality_condition" json:"abnormality_condition"`

	abnormality *condexpr.Expression
}

// CompileAbnormality parses the abnormality condition once at definition
// time. A CDE without a condition is never abnormal.
func (c *CommonDataElement) CompileAbnormality() error {
	if c.AbnormalityCondition == "" {
		c.abnormality = nil
		return nil
	}
	expr, err := condexpr.Parse(c.AbnormalityCondition)
	if err != nil {
		return err
	}
	c.abnormality = expr
	return nil
}

// IsAbnormal evaluates the compiled condition against the value, bound to the
// variable "x". Unparsed or absent conditions report normal.
func (c *CommonDataElement) IsAbnormal(value interface{}) bool {
	if c.abnormality == nil {
		if err := c.CompileAbnormality(); err != nil || c.abnormality == nil {
			return false
		}
	}
	abnormal, err := c.abnormality.Eval(map[string]interface{}{"x": value})
	if err != nil {
		return false
	}
	return abnormal
}
