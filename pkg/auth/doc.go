// Package auth defines the principal model consumed by the billing engine.
//
// Authentication and role resolution happen upstream (the institution
// gateway issues and validates tokens); this package only models the
// already-resolved caller: which tenant they belong to and which roles they
// hold. Components assert on the Principal instead of embedding role
// strings in handlers.
package auth
