package result

// CaseResult accumulates what a single test case invocation produced: an
// optional fault and an optional return value.
//
// CaseResult is mutable and is reset before every invocation.
type CaseResult struct {
	fault       error
	faultSet    bool
	returnValue any
	valueSet    bool
	invoked     bool
}

// SetFault records the error the invocation raised.
func (c *CaseResult) SetFault(err error) {
	c.fault = err
	c.faultSet = err != nil
}

// ClearFault forgets a previously recorded fault.
func (c *CaseResult) ClearFault() {
	c.fault = nil
	c.faultSet = false
}

// Fault returns the recorded fault, if any.
func (c *CaseResult) Fault() (error, bool) {
	return c.fault, c.faultSet
}

// SetReturnValue records the value the invocation returned.
func (c *CaseResult) SetReturnValue(v any) {
	c.returnValue = v
	c.valueSet = true
}

// ReturnValue returns the recorded return value, if any.
func (c *CaseResult) ReturnValue() (any, bool) {
	return c.returnValue, c.valueSet
}

// MarkInvoked records that the target was called.
func (c *CaseResult) MarkInvoked() {
	c.invoked = true
}

// Invoked reports whether the target was called since the last Reset.
func (c *CaseResult) Invoked() bool {
	return c.invoked
}

// Reset clears every recorded field.
func (c *CaseResult) Reset() {
	*c = CaseResult{}
}
