package render

const vsSource = `#version 300 es
	layout (location = 0) in vec3 aVertexPosition;
	layout (location = 1) in vec4 aVertexColor;
	uniform float uPointSize;
	out lowp vec4 vColor;

	void main(void) {
		gl_Position = vec4(aVertexPosition, 1.0);
		gl_PointSize = uPointSize;
		vColor = aVertexColor;
	}
`

const fsSource = `#version 300 es
	in lowp vec4 vColor;
	out lowp vec4 outColor;

	void main(void) {
		outColor = vColor;
	}
`
