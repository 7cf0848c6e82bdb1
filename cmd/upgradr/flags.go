package main

import "time"

// CheckFlags Flag structs to decouple cobra from logic for testing.
type CheckFlags struct {
	Wait time.Duration
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type StatusFlags struct {
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type SettingsFlags struct {
	AutoCheck bool
	AllowBeta bool
	Interval  time.Duration
	// Set* report whether the matching flag was given on the command line,
	// so an untouched preference is never overwritten.
	SetAutoCheck bool
	SetAllowBeta bool
	SetInterval  bool
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type SkipFlags struct {
	Tag string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type HistoryFlags struct {
	Limit int
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type OfferFlags struct {
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type DecideFlags struct {
	Decision string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type LoginFlags struct {
	Username  string
	Password  string
	ServerURL string
}

type HashPasswordFlags struct {
	Password string
	Cost     int
}

type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}

type TemplateCreateFlags struct {
	Name   string
	Type   string
	Output string
	Force  bool
}
