package event

import "time"

type options struct {
	reward   string
	vcAmount *float64
}

// Option adds an optional field to a revenue or item purchase event.
type Option func(*options)

// WithReward names the reward bought with a payment.
func WithReward(name string) Option {
	return func(o *options) { o.reward = name }
}

// WithVirtualCurrency records the amount of virtual currency granted.
func WithVirtualCurrency(amount float64) Option {
	return func(o *options) { o.vcAmount = &amount }
}

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Revenue is a payment made by the user. currency is an ISO 4217 code.
func Revenue(now time.Time, amount float64, currency string, opts ...Option) Fields {
	o := apply(opts)
	f := New(TypeRevenue, now)
	f.Set("amount", amount)
	f.Set("currency", currency)
	if o.vcAmount != nil {
		f.Set("vc_amount", *o.vcAmount)
	}
	f.Put("reward", o.reward)
	return f
}

// ItemPurchase is an item bought by the user. Only WithVirtualCurrency is
// meaningful here.
func ItemPurchase(now time.Time, name string, opts ...Option) Fields {
	o := apply(opts)
	f := New(TypeItemPurchase, now)
	f.Set("name", name)
	if o.vcAmount != nil {
		f.Set("vc_amount", *o.vcAmount)
	}
	return f
}

func Tutorial(now time.Time, step string) Fields {
	f := New(TypeTutorial, now)
	f.Set("step", step)
	return f
}

func Milestone(now time.Time, name, value string) Fields {
	f := New(TypeMilestone, now)
	f.Set("name", name)
	f.Set("value", value)
	return f
}

// Marketing describes the acquisition source of the user. Every field is
// optional.
type Marketing struct {
	Partner  string
	Campaign string
	Ad       string
	SubID    string
	SubSubID string
}

// MarketingEvent is untimestamped; each field is written from its own value.
func MarketingEvent(m Marketing) Fields {
	f := New(TypeMarketing, time.Time{})
	f.Put("partner", m.Partner)
	f.Put("campaign", m.Campaign)
	f.Put("ad", m.Ad)
	f.Put("subid", m.SubID)
	f.Put("subsubid", m.SubSubID)
	return f
}

func UserAttribute(name, value string) Fields {
	f := New(TypeUserAttribute, time.Time{})
	f.Set("name", name)
	f.Set("value", value)
	return f
}

// Country takes an ISO 3166-1 alpha-2 code.
func Country(country string) Fields {
	f := New(TypeCountry, time.Time{})
	f.Set("value", country)
	return f
}

func Heartbeat(now time.Time, payable bool) Fields {
	f := New(TypeHeartbeat, now)
	f.Set("is_payable", payable)
	return f
}

// PlatformInfo describes the host device for the one-time platform event.
type PlatformInfo struct {
	DeviceModel  string
	OSName       string
	ScreenWidth  int
	ScreenHeight int
	ScreenDPI    float64
}

// Platform describes the host. The engine queues one at start-up unless a
// restored queue already holds one.
func Platform(info PlatformInfo) Fields {
	f := New(TypePlatform, time.Time{})
	f.Set("device_model", info.DeviceModel)
	f.Set("os_name", info.OSName)
	f.Set("screen_size_width", info.ScreenWidth)
	f.Set("screen_size_height", info.ScreenHeight)
	f.Set("screen_size_dpi", info.ScreenDPI)
	return f
}
