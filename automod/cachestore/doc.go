// Automod component for caching serialized values (usually JSON, see GetJSON and SetJSON) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis (shared between daemon instances) and in-process memory.
//
// This is used to cache per-guild moderation configuration, including the absence of one, reducing load on the authoritative config backend.
package cachestore
