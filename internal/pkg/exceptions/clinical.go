package exceptions

import "fmt"

// The clinical-data error taxonomy. These are the only typed failures the
// dynamic-data core raises; everything else surfaces as a *CustomError at the
// HTTP boundary. Duplicated ad-hoc definitions are deliberately avoided: this
// file is the single authoritative home.

// BadKeyError reports a flattened form key whose form/section/CDE triple does
// not resolve against the registry definition, e.g. a renamed or deleted CDE
// still referenced by a stale submission. It always propagates to the caller.
type BadKeyError struct {
	Key      string
	Registry string
}

func (e *BadKeyError) Error() string {
	return fmt.Sprintf("bad key %q: no matching form/section/cde in registry %q", e.Key, e.Registry)
}

// FieldExpressionError reports a malformed or unsupported generalised field
// expression. Write paths propagate it; bulk read paths convert it to the
// "??ERROR??" sentinel.
type FieldExpressionError struct {
	Expression string
	Reason     string
}

func (e *FieldExpressionError) Error() string {
	return fmt.Sprintf("field expression %q: %s", e.Expression, e.Reason)
}

// FormParsingError reports a structural problem while nesting flattened form
// data into a clinical document.
type FormParsingError struct {
	Form   string
	Reason string
}

func (e *FormParsingError) Error() string {
	return fmt.Sprintf("cannot parse form %q: %s", e.Form, e.Reason)
}

// KeyValueMissing reports a required structural element absent from a
// document or submission during nesting.
type KeyValueMissing struct {
	Key string
}

func (e *KeyValueMissing) Error() string {
	return fmt.Sprintf("required key %q missing", e.Key)
}

// ConditionParseError reports an unparseable abnormality condition.
type ConditionParseError struct {
	Condition string
	Reason    string
}

func (e *ConditionParseError) Error() string {
	return fmt.Sprintf("cannot parse condition %q: %s", e.Condition, e.Reason)
}
