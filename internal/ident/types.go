// Package ident models the user identifiers attached to every tracked event.
package ident

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a persisted identity block references a type
// tag this build does not know.
var ErrUnknownType = errors.New("ident: unknown identity type")

// Type identifies a category of user identifier.
//
// The numeric values are written to the persisted queue and must never be
// renumbered.
type Type uint8

const (
	// SDK is the installation identifier generated on first start.
	SDK Type = 0
	// Facebook is an externally supplied Facebook account id.
	Facebook Type = 1
	// GooglePlus is an externally supplied Google+ account id.
	GooglePlus Type = 2
	// Twitter is an externally supplied Twitter account id.
	Twitter Type = 3
	// Custom is an application defined user id.
	Custom Type = 4
	// Device is the platform device id (Android id, iOS vendor id). It is
	// never stored; Get always asks the resolver.
	Device Type = 5
	// Advertising is the platform advertising identifier.
	Advertising Type = 6
	// AdTracking holds "1" when ad tracking is allowed and "0" when the user
	// limited it.
	AdTracking Type = 7
)

// endOfSet terminates a persisted identity block.
const endOfSet byte = 0xff

const typeCount = int(AdTracking) + 1

var allTypes = []Type{SDK, Facebook, GooglePlus, Twitter, Custom, Device, Advertising, AdTracking}

// Types returns every identity type in ascending tag order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return int(t) < typeCount
}

// Sticky reports whether a value of this type is kept once it is non-empty.
func (t Type) Sticky() bool {
	switch t {
	case SDK, Facebook, GooglePlus, Twitter:
		return true
	}
	return false
}

// Fixed reports whether the value is owned by the device resolver and never
// stored in a Set.
func (t Type) Fixed() bool {
	return t == Device
}

func (t Type) String() string {
	switch t {
	case SDK:
		return "sdk"
	case Facebook:
		return "facebook"
	case GooglePlus:
		return "google_plus"
	case Twitter:
		return "twitter"
	case Custom:
		return "custom"
	case Device:
		return "device"
	case Advertising:
		return "advertising"
	case AdTracking:
		return "ad_tracking"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Platform selects the export naming of platform-resolved identifiers.
type Platform string

const (
	PlatformGeneric Platform = "generic"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// ParsePlatform maps a config value onto a Platform. Unknown values fall back
// to PlatformGeneric.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformAndroid:
		return PlatformAndroid
	case PlatformIOS:
		return PlatformIOS
	}
	return PlatformGeneric
}

// ExportName returns the stable external key for t as sent to the collector.
func ExportName(t Type, p Platform) string {
	switch t {
	case SDK:
		return "sdk_id"
	case Facebook:
		return "facebook_user_id"
	case GooglePlus:
		return "google_plus_user_id"
	case Twitter:
		return "twitter_user_id"
	case Custom:
		return "custom_user_id"
	case Device:
		switch p {
		case PlatformAndroid:
			return "android_id"
		case PlatformIOS:
			return "ios_vendor_id"
		}
		return "device_id"
	case Advertising:
		switch p {
		case PlatformAndroid:
			return "android_advertising_id"
		case PlatformIOS:
			return "ios_advertising_identifier"
		}
		return "advertising_id"
	case AdTracking:
		switch p {
		case PlatformAndroid:
			return "android_ad_tracking"
		case PlatformIOS:
			return "ios_ad_tracking"
		}
		return "ad_tracking"
	}
	return t.String()
}
