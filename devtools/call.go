package devtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
)

// objectGroup holds every remote object the provider creates. It is
// released on navigation.
const objectGroup = "chainrun"

// callOn calls the function declaration with this bound to obj,
// unmarshaling the result to res. A res of type **runtime.RemoteObject
// receives the result by reference.
func callOn(ctx context.Context, obj runtime.RemoteObjectID, decl string, res interface{}, args ...interface{}) error {
	p := runtime.CallFunctionOn(decl).
		WithObjectID(obj).
		WithObjectGroup(objectGroup).
		WithSilent(true)

	switch res.(type) {
	case nil, **runtime.RemoteObject:
	default:
		p = p.WithReturnByValue(true)
	}

	if len(args) > 0 {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, arg := range args {
			buf, err := json.Marshal(arg)
			if err != nil {
				return fmt.Errorf("encoding argument %v: %w", arg, err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: buf})
		}
		p = p.WithArguments(callArgs)
	}

	v, exp, err := p.Do(ctx)
	if err != nil {
		return err
	}
	if exp != nil {
		return exp
	}
	return parseRemoteObject(v, res)
}

// parseRemoteObject stores the value of v in res.
func parseRemoteObject(v *runtime.RemoteObject, res interface{}) error {
	switch x := res.(type) {
	case nil:
		return nil
	case **runtime.RemoteObject:
		*x = v
		return nil
	case *interface{}:
		if v.Type == "undefined" {
			*x = nil
			return nil
		}
	}
	if v.Type == "undefined" {
		return fmt.Errorf("encountered an undefined value")
	}
	return json.Unmarshal(v.Value, res)
}
