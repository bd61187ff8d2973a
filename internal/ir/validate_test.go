package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBlockType() *BlockType {
	return &BlockType{
		FieldID: 1,
		Name:    "Text",
		Handle:  "text",
		Enabled: true,
	}
}

func TestValidateBlockType_Valid(t *testing.T) {
	assert.Empty(t, ValidateBlockType(validBlockType()))
}

func TestValidateBlockType_CollectsAll(t *testing.T) {
	bt := validBlockType()
	bt.Name = ""
	bt.Handle = "1bad handle"
	bt.MinBlocks = -1
	bt.Color = "mauve"

	errs := ValidateBlockType(bt)
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}

	assert.Equal(t, CodeRequired, codes["Name"])
	assert.Equal(t, CodeBadHandle, codes["Handle"])
	assert.Equal(t, CodeNegative, codes["MinBlocks"])
	assert.Equal(t, CodeBadColor, codes["Color"])
}

func TestValidateBlockType_MinOverMax(t *testing.T) {
	bt := validBlockType()
	bt.MinChildBlocks = 3
	bt.MaxChildBlocks = 2

	errs := ValidateBlockType(bt)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, CodeMinOverMax, errs[0].Code)
		assert.Equal(t, "MinChildBlocks", errs[0].Field)
	}

	// Zero max means unlimited.
	bt.MaxChildBlocks = 0
	assert.Empty(t, ValidateBlockType(bt))
}

func TestValidateGroup(t *testing.T) {
	assert.Empty(t, ValidateGroup(&BlockTypeGroup{FieldID: 1, Name: "Layout"}))
	assert.NotEmpty(t, ValidateGroup(&BlockTypeGroup{}))
}
