// Package controller 持有两张照片、生成状态和结果，并编排一次生成流程。
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hugime/common"
	"hugime/internal/intake"
)

var (
	// ErrMissingInput 两张照片没有都上传
	ErrMissingInput = errors.New("missing input")
	// ErrInFlight 已有生成请求在进行中
	ErrInFlight = errors.New("generation already in flight")
	// ErrAlreadyDone 已有结果，需先 Reset 或重新选择照片
	ErrAlreadyDone = errors.New("result already generated")
)

const (
	missingInputMessage = "Please upload both a kid and an adult photo."
	unexpectedMessage   = "An unexpected error occurred."
)

// Slot 照片槽位
type Slot string

const (
	SlotChild Slot = "child"
	SlotAdult Slot = "adult"
)

// ParseSlot 把 URL 中的槽位名转换为 Slot
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotChild, SlotAdult:
		return Slot(s), nil
	default:
		return "", fmt.Errorf("unknown slot %q", s)
	}
}

// State 控制器状态
type State string

const (
	StateIdle       State = "idle"
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateDone       State = "done"
)

// Generator 生成服务
type Generator interface {
	GenerateHug(ctx context.Context, child, adult intake.EncodedImage) (string, error)
}

// Snapshot 控制器状态的只读副本
type Snapshot struct {
	State  State
	Child  *intake.EncodedImage
	Adult  *intake.EncodedImage
	Result string
	Error  string
}

// Generating 是否有请求在进行中
func (s Snapshot) Generating() bool {
	return s.State == StateGenerating
}

// Controller 同一时刻逻辑上最多只有一个生成请求。
// Select 和 Reset 会递增 epoch，过期请求的结果直接丢弃。
type Controller struct {
	gen Generator

	mu         sync.Mutex
	child      *intake.EncodedImage
	adult      *intake.EncodedImage
	generating bool
	result     string
	errMsg     string
	epoch      uint64
}

// New 创建处于 Idle 状态的控制器
func New(gen Generator) *Controller {
	return &Controller{gen: gen}
}

// Select 把照片放入槽位，覆盖之前的选择
func (c *Controller) Select(slot Slot, img intake.EncodedImage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch slot {
	case SlotChild:
		c.child = &img
	case SlotAdult:
		c.adult = &img
	default:
		return
	}
	if c.generating {
		common.WithField("slot", slot).Info("Selection superseded in-flight generation")
	}
	c.epoch++
	c.generating = false
	c.result = ""
}

// Reset 回到初始状态
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.child = nil
	c.adult = nil
	c.generating = false
	c.result = ""
	c.errMsg = ""
	c.epoch++
}

type job struct {
	epoch uint64
	child intake.EncodedImage
	adult intake.EncodedImage
}

// begin 完成 Ready -> Generating 的转换
func (c *Controller) begin() (job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generating {
		return job{}, ErrInFlight
	}
	if c.result != "" {
		return job{}, ErrAlreadyDone
	}
	if c.child == nil || c.adult == nil {
		c.errMsg = missingInputMessage
		return job{}, ErrMissingInput
	}

	c.errMsg = ""
	c.result = ""
	c.generating = true
	return job{epoch: c.epoch, child: *c.child, adult: *c.adult}, nil
}

func (c *Controller) run(ctx context.Context, j job) error {
	result, err := c.gen.GenerateHug(ctx, j.child, j.adult)

	c.mu.Lock()
	defer c.mu.Unlock()

	if j.epoch != c.epoch {
		common.WithField("epoch", j.epoch).Debug("Discarding stale generation result")
		return err
	}

	c.generating = false
	if err != nil {
		c.errMsg = displayMessage(err)
		common.WithError(err).Warn("Hug generation failed")
		return err
	}
	c.result = result
	return nil
}

// Generate 阻塞执行一次完整的生成。
// 缺少照片返回 ErrMissingInput，已在生成中返回 ErrInFlight，已有结果返回 ErrAlreadyDone，
// 这些情况都不会调用服务。
func (c *Controller) Generate(ctx context.Context) error {
	j, err := c.begin()
	if err != nil {
		return err
	}
	return c.run(ctx, j)
}

// Trigger 同步完成状态转换后在后台执行服务调用
func (c *Controller) Trigger(ctx context.Context) error {
	j, err := c.begin()
	if err != nil {
		return err
	}
	go func() {
		_ = c.run(ctx, j)
	}()
	return nil
}

// Snapshot 返回当前状态的副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Result: c.result,
		Error:  c.errMsg,
	}
	if c.child != nil {
		child := *c.child
		s.Child = &child
	}
	if c.adult != nil {
		adult := *c.adult
		s.Adult = &adult
	}

	switch {
	case c.generating:
		s.State = StateGenerating
	case c.result != "":
		s.State = StateDone
	case c.child != nil && c.adult != nil:
		s.State = StateReady
	default:
		s.State = StateIdle
	}
	return s
}

func displayMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return unexpectedMessage
}
