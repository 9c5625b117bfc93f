package executor

import (
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

// Observer receives execution events in evaluation order. Callbacks run
// synchronously on the executing goroutine.
//
// For every field group: WillResolveField, then the completion events of its
// value, then DidResolveField. A completed value produces exactly one of
// DidCompleteNull, DidCompleteScalar, a WillCompleteObject/DidCompleteObject
// pair, or a WillCompleteList/DidCompleteList pair enclosing one
// WillCompleteElement/DidCompleteElement pair per element.
type Observer interface {
	WillResolveField(field *selection.Field, info *ResolveInfo)
	DidResolveField(field *selection.Field, info *ResolveInfo)
	WillCompleteObject(object value.Object, info *ResolveInfo)
	DidCompleteObject(object value.Object, info *ResolveInfo)
	WillCompleteList(length int, info *ResolveInfo)
	DidCompleteList(info *ResolveInfo)
	WillCompleteElement(index int, info *ResolveInfo)
	DidCompleteElement(index int, info *ResolveInfo)
	DidCompleteScalar(raw any, info *ResolveInfo)
	DidCompleteNull(info *ResolveInfo)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) WillResolveField(*selection.Field, *ResolveInfo) {}
func (NopObserver) DidResolveField(*selection.Field, *ResolveInfo)  {}
func (NopObserver) WillCompleteObject(value.Object, *ResolveInfo)   {}
func (NopObserver) DidCompleteObject(value.Object, *ResolveInfo)    {}
func (NopObserver) WillCompleteList(int, *ResolveInfo)              {}
func (NopObserver) DidCompleteList(*ResolveInfo)                    {}
func (NopObserver) WillCompleteElement(int, *ResolveInfo)           {}
func (NopObserver) DidCompleteElement(int, *ResolveInfo)            {}
func (NopObserver) DidCompleteScalar(any, *ResolveInfo)             {}
func (NopObserver) DidCompleteNull(*ResolveInfo)                    {}
