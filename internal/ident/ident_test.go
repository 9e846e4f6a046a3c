package ident

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beacon/internal/codec"
)

func TestSet_DefaultsEmpty(t *testing.T) {
	s := NewSet(nil)
	for _, typ := range Types() {
		assert.Equal(t, "", s.Get(typ), typ.String())
	}
	assert.Equal(t, "", s.Get(Type(42)))
}

func TestSet_StickyKeepsFirstValue(t *testing.T) {
	s := NewSet(nil)

	for _, typ := range []Type{SDK, Facebook, GooglePlus, Twitter} {
		s.Set(typ, "first")
		s.Set(typ, "second")
		assert.Equal(t, "first", s.Get(typ), typ.String())
	}
}

func TestSet_StickyAcceptsAfterClear(t *testing.T) {
	s := NewSet(nil)
	s.Set(Facebook, "fb-1")
	s.Clear(Facebook)
	s.Set(Facebook, "fb-2")

	assert.Equal(t, "fb-2", s.Get(Facebook))
}

func TestSet_NonStickyOverwrites(t *testing.T) {
	s := NewSet(nil)

	for _, typ := range []Type{Custom, Advertising, AdTracking} {
		s.Set(typ, "first")
		s.Set(typ, "second")
		assert.Equal(t, "second", s.Get(typ), typ.String())
	}
}

func TestSet_DeviceComesFromResolver(t *testing.T) {
	r := NewSimulated(DeviceInfo{Platform: PlatformAndroid, DeviceID: "dev-1"})
	s := NewSet(r)

	s.Set(Device, "ignored")
	assert.Equal(t, "dev-1", s.Get(Device))
}

func TestSet_CloneIsIndependent(t *testing.T) {
	s := NewSet(nil)
	s.Set(Custom, "a")

	c := s.Clone()
	c.Set(Custom, "b")
	s.Set(Twitter, "tw")

	assert.Equal(t, "a", s.Get(Custom))
	assert.Equal(t, "b", c.Get(Custom))
	assert.Equal(t, "", c.Get(Twitter))
}

func TestSet_ExportOrderAndNames(t *testing.T) {
	r := NewSimulated(DeviceInfo{Platform: PlatformIOS, DeviceID: "vendor"})
	s := NewSet(r)
	s.Set(Custom, "abc")
	s.Set(SDK, "sdk-1")
	s.Set(AdTracking, "1")

	assert.Equal(t, []Entry{
		{Name: "sdk_id", Value: "sdk-1"},
		{Name: "custom_user_id", Value: "abc"},
		{Name: "ios_vendor_id", Value: "vendor"},
		{Name: "ios_ad_tracking", Value: "1"},
	}, s.Export())

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"sdk_id":"sdk-1","custom_user_id":"abc","ios_vendor_id":"vendor","ios_ad_tracking":"1"}`, string(b))
}

func TestSet_EmptyMarshalsToObject(t *testing.T) {
	b, err := json.Marshal(NewSet(nil))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestSet_SaveLayout(t *testing.T) {
	s := NewSet(nil)
	s.Set(Custom, "ab")

	w := codec.NewWriter()
	s.Save(w)
	assert.Equal(t, []byte{0x04, 0x02, 'a', 'b', 0xff}, w.Bytes())
}

func TestSet_SaveLoadRoundTrip(t *testing.T) {
	s := NewSet(nil)
	s.Set(SDK, "sdk")
	s.Set(Twitter, "tw")
	s.Set(Custom, "héllo")
	s.Set(Advertising, "ad")

	w := codec.NewWriter()
	s.Save(w)

	loaded := NewSet(nil)
	loaded.Set(SDK, "other")
	require.NoError(t, loaded.Load(codec.NewReader(w.Bytes())))

	for _, typ := range Types() {
		assert.Equal(t, s.Get(typ), loaded.Get(typ), typ.String())
	}
}

func TestSet_LoadSkipsFixedType(t *testing.T) {
	w := codec.NewWriter()
	w.Byte(byte(Device))
	w.String("stale")
	w.Byte(0xff)

	r := NewSimulated(DeviceInfo{DeviceID: "live"})
	s := NewSet(r)
	require.NoError(t, s.Load(codec.NewReader(w.Bytes())))
	assert.Equal(t, "live", s.Get(Device))
}

func TestSet_LoadErrors(t *testing.T) {
	err := NewSet(nil).Load(codec.NewReader([]byte{0x09, 0x00, 0xff}))
	assert.ErrorIs(t, err, ErrUnknownType)

	// missing terminator
	err = NewSet(nil).Load(codec.NewReader([]byte{0x04, 0x01, 'x'}))
	assert.ErrorIs(t, err, codec.ErrShortBuffer)
}

func TestExportName_Platforms(t *testing.T) {
	tests := []struct {
		typ      Type
		platform Platform
		want     string
	}{
		{Device, PlatformAndroid, "android_id"},
		{Device, PlatformGeneric, "device_id"},
		{Advertising, PlatformAndroid, "android_advertising_id"},
		{Advertising, PlatformIOS, "ios_advertising_identifier"},
		{Advertising, PlatformGeneric, "advertising_id"},
		{AdTracking, PlatformAndroid, "android_ad_tracking"},
		{GooglePlus, PlatformIOS, "google_plus_user_id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExportName(tt.typ, tt.platform))
	}
}

func TestParsePlatform(t *testing.T) {
	assert.Equal(t, PlatformAndroid, ParsePlatform("android"))
	assert.Equal(t, PlatformIOS, ParsePlatform("ios"))
	assert.Equal(t, PlatformGeneric, ParsePlatform("windows"))
	assert.Equal(t, PlatformGeneric, ParsePlatform(""))
}

func TestSimulated_DoneAfterStart(t *testing.T) {
	r := NewSimulated(DeviceInfo{AdvertisingID: "ad", AdTrackingEnabled: true})
	assert.False(t, r.Done())
	r.Start(context.Background())
	assert.True(t, r.Done())
	assert.Equal(t, PlatformGeneric, r.Platform())
	assert.Equal(t, "ad", r.AdvertisingID())
	assert.True(t, r.AdTrackingEnabled())
}

func TestAsync_PublishesResult(t *testing.T) {
	release := make(chan struct{})
	r := NewAsync(DeviceInfo{Platform: PlatformAndroid}, func(ctx context.Context) (DeviceInfo, error) {
		<-release
		return DeviceInfo{DeviceID: "dev", AdvertisingID: "gaid", AdTrackingEnabled: true}, nil
	}, nil)

	r.Start(context.Background())
	assert.False(t, r.Done())
	close(release)

	require.Eventually(t, r.Done, time.Second, time.Millisecond)
	assert.Equal(t, PlatformAndroid, r.Platform())
	assert.Equal(t, "dev", r.DeviceID())
	assert.Equal(t, "gaid", r.AdvertisingID())
	assert.True(t, r.AdTrackingEnabled())
}

func TestAsync_FailureKeepsFallback(t *testing.T) {
	r := NewAsync(DeviceInfo{DeviceID: "fallback", AdTrackingEnabled: true}, func(ctx context.Context) (DeviceInfo, error) {
		return DeviceInfo{}, errors.New("no play services")
	}, nil)

	r.Start(context.Background())
	require.Eventually(t, r.Done, time.Second, time.Millisecond)
	assert.Equal(t, "fallback", r.DeviceID())
	assert.True(t, r.AdTrackingEnabled())
}
