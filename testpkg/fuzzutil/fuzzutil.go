// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// The fuzzutil package turns a flat fuzzer-provided byte slice into a
// sequence of test steps. A ByteConsumer doles the bytes out as small
// scalars, a step-maker converts each chunk into a Step, and a TestRun
// executes the steps in order.
package fuzzutil

import (
	"encoding/binary"
	"math/rand"
)

type ByteConsumer struct {
	bytes []byte
}

func NewByteConsumer(bytes []byte) *ByteConsumer {
	return &ByteConsumer{
		bytes: bytes,
	}
}

func (c *ByteConsumer) Len() int {
	return len(c.bytes)
}

// consume returns the next size bytes, zero-padded when the consumer
// runs dry. Reading past the end is legal, it just produces zeros.
func (c *ByteConsumer) consume(size int) []byte {
	consumed := make([]byte, size)
	copy(consumed, c.bytes)

	if len(c.bytes) <= size {
		c.bytes = c.bytes[:0]
	} else {
		c.bytes = c.bytes[size:]
	}
	return consumed
}

func (c *ByteConsumer) Byte() byte {
	return c.consume(1)[0]
}

func (c *ByteConsumer) Uint16() uint16 {
	return binary.LittleEndian.Uint16(c.consume(2))
}

func (c *ByteConsumer) Uint32() uint32 {
	return binary.LittleEndian.Uint32(c.consume(4))
}

type Step interface {
	DoStep()
}

type TestRun struct {
	steps   []Step
	cleanup func()
}

func NewTestRun(bytes []byte, stepMaker func(*ByteConsumer) Step, cleanup func()) *TestRun {
	tr := &TestRun{
		steps:   make([]Step, 0),
		cleanup: cleanup,
	}
	byteConsumer := NewByteConsumer(bytes)

	for byteConsumer.Len() > 0 {
		tr.steps = append(tr.steps, stepMaker(byteConsumer))
	}
	return tr
}

func (t *TestRun) Run() {
	defer t.cleanup()
	for _, step := range t.steps {
		step.DoStep()
	}
}

// MakeRandomTestCases builds the deterministic seed corpus for a fuzz
// test.
func MakeRandomTestCases() [][]byte {
	r := rand.New(rand.NewSource(1))
	sizes := []int{0, 1, 10, 50, 100, 500, 1000, 5000, 10000, 50000}

	cases := make([][]byte, len(sizes))
	for i, size := range sizes {
		cases[i] = make([]byte, size)
		r.Read(cases[i])
	}
	return cases
}
