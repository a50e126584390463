package devtools

import (
	_ "embed"
)

var (
	// queryJS returns the elements reached from this through a relation
	// that match a selector.
	//go:embed js/query.js
	queryJS string

	// propertyJS reads a property of this, computing the synthetic ones
	// (rendered, focused, the window scroll values). Missing properties
	// read as {__missing: true}.
	//go:embed js/property.js
	propertyJS string

	// setPropertyJS sets a property of this.
	//go:embed js/setProperty.js
	setPropertyJS string

	// attributeJS returns [present, value] for an attribute of this.
	//go:embed js/attribute.js
	attributeJS string

	// boxJS returns [x, y, width, height] of this in viewport coordinates.
	//go:embed js/box.js
	boxJS string

	// dispatchJS dispatches a synthetic DOM event on this.
	//go:embed js/dispatch.js
	dispatchJS string

	// elementAtJS returns the topmost element at a viewport point.
	//go:embed js/elementAt.js
	elementAtJS string

	// indexJS returns this[i].
	//go:embed js/index.js
	indexJS string
)

const lengthJS = `function() { return this.length; }`
