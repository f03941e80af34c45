package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsInvalidProviderID(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"bad id!": {Mode: ModeSubprocess, Command: "echo"},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateSubprocessRequiresCommand(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeSubprocess},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateRejectsShellMetacharactersInCommand(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeSubprocess, Command: "echo hi; rm -rf /"},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateContainerRequiresImage(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeContainer},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateContainerRejectsBlockedVolumeMounts(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeContainer, Image: "busybox", Volumes: []string{"/var/run/docker.sock:/var/run/docker.sock"}},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateContainerRejectsRelativeVolumePath(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeContainer, Image: "busybox", Volumes: []string{"relative/path:/data"}},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateRemoteRequiresURL(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: ModeRemote},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateRejectsUnrecognisedMode(t *testing.T) {
	c := &Config{Providers: map[string]Provider{
		"a": {Mode: "bogus"},
	}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateGroupRequiresAtLeastOneMember(t *testing.T) {
	c := &Config{Groups: map[string]Group{"g": {}}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateGroupRejectsUnknownMemberProvider(t *testing.T) {
	c := &Config{
		Providers: map[string]Provider{"a": {Mode: ModeSubprocess, Command: "echo"}},
		Groups: map[string]Group{
			"g": {Members: []GroupMember{{ProviderID: "missing"}}},
		},
	}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateGroupAcceptsKnownStrategies(t *testing.T) {
	c := &Config{
		Providers: map[string]Provider{"a": {Mode: ModeSubprocess, Command: "echo"}},
		Groups: map[string]Group{
			"g": {Members: []GroupMember{{ProviderID: "a"}}, Strategy: StrategyWeightedRoundRobin},
		},
	}
	errs := Validate(c)
	assert.False(t, errs.HasErrors())
}

func TestValidateGroupRejectsUnrecognisedStrategy(t *testing.T) {
	c := &Config{
		Providers: map[string]Provider{"a": {Mode: ModeSubprocess, Command: "echo"}},
		Groups: map[string]Group{
			"g": {Members: []GroupMember{{ProviderID: "a"}}, Strategy: "bogus"},
		},
	}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateBatchLimitsAreBounded(t *testing.T) {
	c := &Config{Batch: BatchConfig{MaxCalls: 1000, MaxConcurrency: 1000}}
	errs := Validate(c)
	assert.True(t, errs.HasErrors())
}

func TestValidateValidConfigHasNoErrors(t *testing.T) {
	c := &Config{
		Providers: map[string]Provider{
			"a": {Mode: ModeSubprocess, Command: "echo"},
		},
	}
	errs := Validate(c)
	assert.False(t, errs.HasErrors())
}
