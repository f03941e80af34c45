package batch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsToolNameOverLengthLimit(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: strings.Repeat("a", MaxToolNameLength+1)}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateAcceptsToolNameAtLengthLimit(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: strings.Repeat("a", MaxToolNameLength)}}}
	errs := validate(req, resolver)
	assert.Empty(t, errs)
}

func TestValidateRejectsToolNameWithDisallowedCharacters(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: "sum; rm -rf /"}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateAcceptsDottedToolName(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: "math.sum_2"}}}
	errs := validate(req, resolver)
	assert.Empty(t, errs)
}

func TestValidateAcceptsArgumentsOfExactlyOneMiB(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	// json.Marshal of {"x":"...."} adds 8 bytes of framing (`{"x":""}`) around the
	// string payload, so pad the string to land the encoded object exactly at
	// MaxArgumentsBytes.
	padding := MaxArgumentsBytes - int64(len(`{"x":""}`))
	req := Request{Calls: []Call{{
		ProviderID: "p1",
		Tool:       "sum",
		Arguments:  map[string]interface{}{"x": strings.Repeat("a", int(padding))},
	}}}
	errs := validate(req, resolver)
	assert.Empty(t, errs)
}

func TestValidateRejectsArgumentsOneByteOverOneMiB(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	padding := MaxArgumentsBytes - int64(len(`{"x":""}`)) + 1
	req := Request{Calls: []Call{{
		ProviderID: "p1",
		Tool:       "sum",
		Arguments:  map[string]interface{}{"x": strings.Repeat("a", int(padding))},
	}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateRejectsArgumentsNestingBeyondLimit(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	var nested interface{} = "leaf"
	for i := 0; i < MaxArgumentsNestingDepth+1; i++ {
		nested = map[string]interface{}{"child": nested}
	}
	req := Request{Calls: []Call{{
		ProviderID: "p1",
		Tool:       "sum",
		Arguments:  map[string]interface{}{"root": nested},
	}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateAcceptsArgumentsNestingAtLimit(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	var nested interface{} = "leaf"
	for i := 0; i < MaxArgumentsNestingDepth-1; i++ {
		nested = map[string]interface{}{"child": nested}
	}
	req := Request{Calls: []Call{{
		ProviderID: "p1",
		Tool:       "sum",
		Arguments:  map[string]interface{}{"root": nested},
	}}}
	errs := validate(req, resolver)
	assert.Empty(t, errs)
}

func TestValidateRejectsPerCallTimeoutBelowFloor(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: "sum", Timeout: 50 * time.Millisecond}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateRejectsPerCallTimeoutAboveCeiling(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: "sum", Timeout: MaxPerCallTimeout + time.Second}}}
	errs := validate(req, resolver)
	assert.NotEmpty(t, errs)
}

func TestValidateAcceptsZeroPerCallTimeoutAsBatchDefault(t *testing.T) {
	resolver := &fakeResolver{providers: map[string]ProviderTarget{"p1": okProvider()}}
	req := Request{Calls: []Call{{ProviderID: "p1", Tool: "sum"}}}
	errs := validate(req, resolver)
	assert.Empty(t, errs)
}

func TestNormalizeClampsMaxRetriesToHardLimit(t *testing.T) {
	req := Request{MaxRetries: 1000}
	req.normalize()
	assert.Equal(t, MaxRetries, req.MaxRetries)
}

func TestNormalizeFloorsMaxRetriesToOne(t *testing.T) {
	req := Request{MaxRetries: 0}
	req.normalize()
	assert.Equal(t, MinRetries, req.MaxRetries)
}
