package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// gcpPublisher narrows *pubsub.Publisher to the publisher interface so tests can stub it.
type gcpPublisher struct {
	topic *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{topic: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{res: p.topic.Publish(ctx, msg)}
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errNilPublishResult
	}
	return r.res.Get(ctx)
}
