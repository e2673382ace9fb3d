package logging

import (
	"context"
)

type contextKey string

const (
	MessageIDKey   contextKey = "message_id"
	EventFamilyKey contextKey = "event_family"
	ServiceNameKey contextKey = "service_name"
)

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithEventFamily(ctx context.Context, family string) context.Context {
	return context.WithValue(ctx, EventFamilyKey, family)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetEventFamily(ctx context.Context) string {
	if family, ok := ctx.Value(EventFamilyKey).(string); ok {
		return family
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if family := GetEventFamily(ctx); family != "" {
		fields = append(fields, "event_family", family)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
