// Package jvmtiport is the production ports.InstrumentationPort
// adapter: the boundary where this agent would cross into the JVM via
// JVMTI/JNI. That boundary is cgo-only (JVMTI is a C ABI exposed
// through libjvm.so; there is no pure-Go path onto it), and linking a
// real native agent requires a JDK's jvmti.h and a build of the
// accompanying C shim that is not part of this module. Attach, the
// one operation that must run before any InstrumentationPort method is
// callable, is intentionally out of scope here.
//
// This file is the honest stub side of that boundary: it satisfies
// ports.InstrumentationPort so the rest of the pipeline (cmd/bytehotd,
// internal/session) can be wired against a real InstrumentationPort
// value rather than a test fake. Every method that returns an error
// fails fast with ErrNativeAgentNotAttached, and IsRedefineSupported
// and IsRetransformSupported report false. No cgo-backed variant is
// part of this module.
package jvmtiport

import (
	"context"
	"errors"

	"github.com/bytehotd/bytehotd/internal/ports"
)

var (
	// ErrNativeAgentNotAttached is returned by every error-returning
	// InstrumentationPort method on this adapter; no cgo/JNI shim is
	// linked into this build.
	ErrNativeAgentNotAttached = errors.New("jvmtiport: no native JVMTI agent attached to this process")

	// ErrRetransformUnsupported documents that this adapter speaks
	// RetransformClasses, not RedefineClasses, when a real shim is
	// linked, since retransform preserves other agents' instrumentation.
	ErrRetransformUnsupported = errors.New("jvmtiport: retransform requires a linked native agent")
)

// Adapter is the production InstrumentationPort. Its zero value is
// usable and behaves as "no JVM attached" for every method.
type Adapter struct{}

// New constructs an Adapter. Attach is expected to happen on the
// native side (the JVM loads this agent via -agentpath, not the other
// way around); there is nothing to connect to here.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) IsRedefineSupported() bool { return false }

func (a *Adapter) IsRetransformSupported() bool { return false }

func (a *Adapter) LoadedClasses(ctx context.Context) ([]ports.ClassHandle, error) {
	return nil, ErrNativeAgentNotAttached
}

func (a *Adapter) BytecodeOf(ctx context.Context, handle ports.ClassHandle) ([]byte, error) {
	return nil, ErrNativeAgentNotAttached
}

func (a *Adapter) Redefine(ctx context.Context, handle ports.ClassHandle, newBytes []byte) error {
	return ErrNativeAgentNotAttached
}

func (a *Adapter) InstancesOf(ctx context.Context, handle ports.ClassHandle) ([]ports.InstanceRef, error) {
	return nil, ErrNativeAgentNotAttached
}

func (a *Adapter) FieldsOf(ctx context.Context, instance ports.InstanceRef) (map[string]any, error) {
	return nil, ErrNativeAgentNotAttached
}

func (a *Adapter) SetFields(ctx context.Context, instance ports.InstanceRef, fields map[string]any) error {
	return ErrNativeAgentNotAttached
}

var _ ports.InstrumentationPort = (*Adapter)(nil)
