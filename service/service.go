// Package service defines the Lifecycle interface every long-running
// collaborator in this node implements, and thin wrappers adapting
// ingress.Server and validator.Queue to it.
//
// Grounded on the original implementation's ServiceBase
// (original_source/source/ccnode/src/service_base.hpp), whose
// ConfigPreset/ConfigPostset virtual hooks run before and after flag
// parsing, and TransactService (transact.cpp), whose Start/StartShutdown/
// WaitForShutdown delegate straight through to an underlying generic
// server object. Go has no virtual-method override story, so the
// Preset/Postset hooks here are plain interface methods a concrete
// Lifecycle either implements meaningfully or leaves as a no-op, same as
// ServiceBase's empty default bodies.
package service

import "context"

// Lifecycle is the four-phase startup/shutdown contract every service in
// this node follows: Preset and Postset bracket configuration (mirroring
// ServiceBase::ConfigPreset/ConfigPostset), Start begins serving, and
// StartShutdown/WaitForShutdown split shutdown into a non-blocking signal
// and a blocking join, exactly as TransactService::StartShutdown/
// WaitForShutdown forward to its m_service.
type Lifecycle interface {
	// Preset runs before configuration is finalized, for defaults that
	// depend on nothing else.
	Preset() error
	// Postset runs after configuration is finalized, for validation or
	// derived state that depends on other settings.
	Postset() error
	// Start begins serving in the background and returns immediately;
	// ctx cancellation is the service's own shutdown signal in addition
	// to StartShutdown.
	Start(ctx context.Context) error
	// StartShutdown signals shutdown without blocking.
	StartShutdown()
	// WaitForShutdown blocks until the service has fully stopped.
	WaitForShutdown()
}

// NopPreset and NopPostset back services with no pre/post configuration
// work, matching ServiceBase's empty default hook bodies.
type NopPreset struct{}

func (NopPreset) Preset() error { return nil }

type NopPostset struct{}

func (NopPostset) Postset() error { return nil }
