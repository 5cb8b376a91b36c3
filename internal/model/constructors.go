package model

// NewProperty builds a Property with its modelType discriminator set.
func NewProperty(idShort, valueType, value string) *Property {
	return &Property{Base: Base{IDShort: idShort}, ModelType: TypeProperty, ValueType: valueType, Value: value}
}

func NewMultiLanguageProperty(idShort string, value []LangString) *MultiLanguageProperty {
	return &MultiLanguageProperty{Base: Base{IDShort: idShort}, ModelType: TypeMultiLanguageProperty, Value: value}
}

func NewRange(idShort, valueType, min, max string) *Range {
	return &Range{Base: Base{IDShort: idShort}, ModelType: TypeRange, ValueType: valueType, Min: min, Max: max}
}

func NewBlob(idShort, contentType, value string) *Blob {
	return &Blob{Base: Base{IDShort: idShort}, ModelType: TypeBlob, ContentType: contentType, Value: value}
}

func NewFile(idShort, contentType, value string) *File {
	return &File{Base: Base{IDShort: idShort}, ModelType: TypeFile, ContentType: contentType, Value: value}
}

func NewReferenceElement(idShort string, value *Reference) *ReferenceElement {
	return &ReferenceElement{Base: Base{IDShort: idShort}, ModelType: TypeReferenceElement, Value: value}
}

func NewRelationshipElement(idShort string, first, second Reference) *RelationshipElement {
	return &RelationshipElement{Base: Base{IDShort: idShort}, ModelType: TypeRelationshipElement, First: first, Second: second}
}

func NewAnnotatedRelationshipElement(idShort string, first, second Reference) *AnnotatedRelationshipElement {
	return &AnnotatedRelationshipElement{Base: Base{IDShort: idShort}, ModelType: TypeAnnotatedRelationshipElement, First: first, Second: second}
}

func NewSubmodelElementCollection(idShort string, value SubmodelElementSlice) *SubmodelElementCollection {
	return &SubmodelElementCollection{Base: Base{IDShort: idShort}, ModelType: TypeSubmodelElementCollection, Value: value}
}

func NewSubmodelElementList(idShort string, typeValueListElement ModelType, value SubmodelElementSlice) *SubmodelElementList {
	return &SubmodelElementList{
		Base:                 Base{IDShort: idShort},
		ModelType:            TypeSubmodelElementList,
		OrderRelevant:        true,
		TypeValueListElement: typeValueListElement,
		Value:                value,
	}
}

func NewEntity(idShort string, entityType EntityType) *Entity {
	return &Entity{Base: Base{IDShort: idShort}, ModelType: TypeEntity, EntityType: entityType}
}

func NewBasicEventElement(idShort string, observed Reference, direction Direction, state StateOfEvent) *BasicEventElement {
	return &BasicEventElement{Base: Base{IDShort: idShort}, ModelType: TypeBasicEventElement, Observed: observed, Direction: direction, State: state}
}

func NewOperation(idShort string) *Operation {
	return &Operation{Base: Base{IDShort: idShort}, ModelType: TypeOperation}
}

func NewCapability(idShort string) *Capability {
	return &Capability{Base: Base{IDShort: idShort}, ModelType: TypeCapability}
}
