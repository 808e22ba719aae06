package scan

// HubSubscribe lets a presentation layer follow scan progress.
func (r *Runner) HubSubscribe() chan Progress {
	if r.hub == nil {
		return nil
	}
	return r.hub.Subscribe()
}

func (r *Runner) HubUnsubscribe(ch chan Progress) {
	if r.hub == nil || ch == nil {
		return
	}
	r.hub.Unsubscribe(ch)
}
