package protocol

// Branches holds one handler per response kind.
// A nil handler means that kind is not acceptable at this point of an exchange.
type Branches struct {
	Okay func(payload string) error
	Fail func(reason string) error
	Data func(size uint32) error
	Info func(msg string) error
}

// Route dispatches r to the matching branch of b and returns its result.
// It keeps no state; deciding which kinds are legal when is left to the caller,
// which expresses it by leaving branches nil.
//
// Example:
//
//	err := protocol.Route(resp, protocol.Branches{
//	    Okay: func(p string) error { result = p; return nil },
//	    Fail: func(r string) error { return fmt.Errorf("device: %s", r) },
//	    Info: func(m string) error { log.Println(m); return nil },
//	})
func Route(r Response, b Branches) error {
	switch r.Kind {
	case KindOkay:
		if b.Okay != nil {
			return b.Okay(r.Payload)
		}
	case KindFail:
		if b.Fail != nil {
			return b.Fail(r.Payload)
		}
	case KindData:
		if b.Data != nil {
			return b.Data(r.Size)
		}
	case KindInfo:
		if b.Info != nil {
			return b.Info(r.Payload)
		}
	}
	return &UnexpectedResponseError{Kind: r.Kind}
}
