package main

// Chunk vertices are pulled from the vertex storage buffer by gl_VertexID,
// which already includes the draw's base vertex. Each draw's base instance
// selects the chunk origin.
const chunkVertexShader = `
#version 460 core

layout(std430, binding = 0) readonly buffer Origins { vec4 origins[]; };
layout(std430, binding = 1) readonly buffer Vertices { uvec2 vertices[]; };

uniform mat4 uProjection;
uniform mat4 uView;

out float vShade;
out float vDistance;
flat out uint vTexture;

const float faceLight[6] = float[6](0.8, 0.8, 1.0, 0.5, 0.9, 0.9);

void main() {
    uvec2 v = vertices[gl_VertexID];
    vec3 local = vec3(v.x & 0x7Fu, (v.x >> 7) & 0x7Fu, (v.x >> 14) & 0x7Fu);
    uint face = (v.x >> 21) & 0x7u;
    uint ao = (v.x >> 24) & 0x3u;
    bool billboard = (v.x & (1u << 26)) != 0u;

    vec3 pos = origins[gl_BaseInstance].xyz + local;
    vec4 eye = uView * vec4(pos, 1.0);
    gl_Position = uProjection * eye;
    vDistance = length(eye.xyz);
    vShade = billboard ? 1.0 : faceLight[face] * (1.0 - 0.2 * float(ao));
    vTexture = v.y;
}
`

const chunkFragmentShader = `
#version 460 core

in float vShade;
in float vDistance;
flat in uint vTexture;

uniform bool uWireframe;
uniform vec3 uFogColor;
uniform float uFogEnd;

out vec4 FragColor;

const vec3 palette[10] = vec3[10](
    vec3(1.0, 0.0, 1.0),
    vec3(0.50, 0.50, 0.52),
    vec3(0.45, 0.32, 0.20),
    vec3(0.40, 0.55, 0.25),
    vec3(0.35, 0.70, 0.25),
    vec3(0.85, 0.80, 0.55),
    vec3(0.80, 0.90, 0.95),
    vec3(0.20, 0.35, 0.80),
    vec3(0.90, 0.30, 0.30),
    vec3(0.30, 0.65, 0.20)
);

void main() {
    vec3 c = palette[min(vTexture, 9u)];
    if (uWireframe) {
        c = vec3(0.05);
    }
    float fog = clamp((vDistance - 0.6 * uFogEnd) / (0.4 * uFogEnd), 0.0, 1.0);
    FragColor = vec4(mix(c * vShade, uFogColor, fog), 1.0);
}
`
