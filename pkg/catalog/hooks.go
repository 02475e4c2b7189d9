package catalog

import "context"

// Hooks allow extending catalog behavior without modifying core code.
// Hooks are called at specific points of the product and image lifecycle.
type Hooks struct {
	AfterProductCreate []AfterProductCreateHook
	AfterImageUpload   []AfterImageUploadHook
	OnError            []ErrorHook
}

// HookContext carries information through the hook chain
type HookContext struct {
	Context   context.Context
	Metadata  map[string]interface{} // Custom metadata passed between hooks
	StopChain bool                   // Set to true to stop processing remaining hooks
}

// NewHookContext creates a new hook context
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{
		Context:  ctx,
		Metadata: make(map[string]interface{}),
	}
}

// AfterProductCreateHook is called after a product is created
type AfterProductCreateHook func(hctx *HookContext, product *Product) error

// AfterImageUploadHook is called after an image is written to the primary store.
// The thumbnail worker subscribes here.
type AfterImageUploadHook func(hctx *HookContext, image UploadedImage) error

// ErrorHook is called when an operation fails
type ErrorHook func(hctx *HookContext, op string, err error)

// HookRunner executes hooks in order
type HookRunner struct {
	hooks *Hooks
}

// NewHookRunner creates a runner; a nil hooks value runs nothing
func NewHookRunner(hooks *Hooks) *HookRunner {
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &HookRunner{hooks: hooks}
}

// RunAfterProductCreate executes after product create hooks
func (r *HookRunner) RunAfterProductCreate(ctx context.Context, product *Product) error {
	hctx := NewHookContext(ctx)
	for _, hook := range r.hooks.AfterProductCreate {
		if err := hook(hctx, product); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

// RunAfterImageUpload executes after image upload hooks
func (r *HookRunner) RunAfterImageUpload(ctx context.Context, image UploadedImage) error {
	hctx := NewHookContext(ctx)
	for _, hook := range r.hooks.AfterImageUpload {
		if err := hook(hctx, image); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

// RunOnError executes error hooks. Error hooks cannot fail.
func (r *HookRunner) RunOnError(ctx context.Context, op string, err error) {
	hctx := NewHookContext(ctx)
	for _, hook := range r.hooks.OnError {
		hook(hctx, op, err)
		if hctx.StopChain {
			break
		}
	}
}
